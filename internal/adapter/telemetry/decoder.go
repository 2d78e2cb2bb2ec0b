// Package telemetry receives the energy meter multicast datagrams and decodes them into readings.
package telemetry

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
)

var (
	ErrUnknownRoot  = errors.New("unknown root element")
	ErrNoChannels   = errors.New("electricity document without channels")
	ErrNoGenerating = errors.New("solar document without current generation")
)

type xmlChannel struct {
	Id   string `xml:"id,attr"`
	Curr string `xml:"curr"`
}

type xmlElectricity struct {
	Channels *struct {
		Chan []xmlChannel `xml:"chan"`
	} `xml:"channels"`
}

type xmlSolar struct {
	Current *struct {
		Generating *string `xml:"generating"`
	} `xml:"current"`
}

// Decode never fails: anything that is not a valid electricity or solar document is returned as domain.Unrecognized.
func Decode(buf []byte, receivedAt time.Time) domain.Reading {
	reading, err := decode(buf, receivedAt)
	if err != nil {
		return domain.Unrecognized{Reason: err}
	}
	return reading
}

func decode(buf []byte, receivedAt time.Time) (domain.Reading, error) {
	// the meter firmware sometimes sends stray non UTF-8 bytes
	dec := xml.NewDecoder(bytes.NewReader(bytes.ToValidUTF8(buf, nil)))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	root, err := firstElement(dec)
	if err != nil {
		return nil, err
	}

	var reading domain.Reading
	switch root.Name.Local {
	case "electricity":
		var doc xmlElectricity
		if err := dec.DecodeElement(&doc, &root); err != nil {
			return nil, fmt.Errorf("decode electricity: %w", err)
		}
		reading, err = phaseReading(doc, receivedAt)
	case "solar":
		var doc xmlSolar
		if err := dec.DecodeElement(&doc, &root); err != nil {
			return nil, fmt.Errorf("decode solar: %w", err)
		}
		reading, err = solarSample(doc, receivedAt)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoot, root.Name.Local)
	}
	if err != nil {
		return nil, err
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	return reading, nil
}

func phaseReading(doc xmlElectricity, receivedAt time.Time) (domain.Reading, error) {
	if doc.Channels == nil || len(doc.Channels.Chan) == 0 {
		return nil, ErrNoChannels
	}
	r := domain.PhaseReading{ReceivedAt: receivedAt}
	for _, c := range doc.Channels.Chan {
		id, err := strconv.Atoi(strings.TrimSpace(c.Id))
		if err != nil || id < 0 || id >= domain.CHANNEL_COUNT {
			continue
		}
		r.Channels[id] = parseWatt(c.Curr)
	}
	return r, nil
}

func solarSample(doc xmlSolar, receivedAt time.Time) (domain.Reading, error) {
	if doc.Current == nil || doc.Current.Generating == nil {
		return nil, ErrNoGenerating
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*doc.Current.Generating), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGenerating, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: non finite value %v", ErrNoGenerating, v)
	}
	return domain.SolarSample{Generating: v, ReceivedAt: receivedAt}, nil
}

// parseWatt returns 0 for missing, malformed or non finite values.
func parseWatt(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func firstElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, errors.New("empty document")
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return xml.StartElement{}, errors.New("text before root element")
			}
		}
	}
}

// expectEOF rejects anything but whitespace, comments and processing instructions after the root.
func expectEOF(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return errors.New("more than one root element")
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text after root element")
			}
		}
	}
}
