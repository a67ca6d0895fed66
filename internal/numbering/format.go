package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The template vocabulary is fixed: {prefix}, {year}, {month}, {day} and
// {seq}, each optionally with a zero-pad width spec such as {seq:05d}.
// Anything else is rejected when the template is compiled, so a bad
// configuration can never surface mid-allocation.

var tokenDefaults = map[string]int{
	"prefix": 0,
	"year":   4,
	"month":  2,
	"day":    2,
	"seq":    0,
}

type segment struct {
	literal string
	token   string
	width   int
}

type template struct {
	segments []segment
}

// compileFormat parses a format string into renderable segments.
func compileFormat(format string) (*template, error) {
	var segs []segment
	var lit strings.Builder

	for i := 0; i < len(format); {
		c := format[i]
		if c != '{' {
			if c == '}' {
				return nil, fmt.Errorf("%w: unmatched '}' in %q", ErrInvalidFormat, format)
			}
			lit.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(format[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unmatched '{' in %q", ErrInvalidFormat, format)
		}
		body := format[i+1 : i+end]
		name := body
		width := -1
		if colon := strings.IndexByte(body, ':'); colon >= 0 {
			name = body[:colon]
			spec := body[colon+1:]
			w, err := parseWidthSpec(spec)
			if err != nil {
				return nil, fmt.Errorf("%w: bad width spec %q in %q", ErrInvalidFormat, spec, format)
			}
			width = w
		}
		def, ok := tokenDefaults[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown token %q in %q", ErrInvalidFormat, name, format)
		}
		if width < 0 {
			width = def
		}
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
		segs = append(segs, segment{token: name, width: width})
		i += end + 1
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{literal: lit.String()})
	}
	return &template{segments: segs}, nil
}

// parseWidthSpec accepts the zero-padded integer specs "0Nd" (and a bare
// "d" meaning no padding).
func parseWidthSpec(spec string) (int, error) {
	if spec == "d" {
		return 0, nil
	}
	if !strings.HasPrefix(spec, "0") || !strings.HasSuffix(spec, "d") || len(spec) < 3 {
		return 0, fmt.Errorf("unsupported spec %q", spec)
	}
	w, err := strconv.Atoi(spec[1 : len(spec)-1])
	if err != nil || w <= 0 {
		return 0, fmt.Errorf("unsupported spec %q", spec)
	}
	return w, nil
}

// ValidateFormat rejects templates outside the supported vocabulary. It is
// the configuration-time check used by anything that writes a sequence row.
func ValidateFormat(format string) error {
	_, err := compileFormat(format)
	return err
}

func (t *template) render(prefix string, today time.Time, seq int64, seqPadding int) string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.token == "" {
			b.WriteString(s.literal)
			continue
		}
		switch s.token {
		case "prefix":
			b.WriteString(prefix)
		case "year":
			b.WriteString(pad(int64(today.Year()), s.width))
		case "month":
			b.WriteString(pad(int64(today.Month()), s.width))
		case "day":
			b.WriteString(pad(int64(today.Day()), s.width))
		case "seq":
			width := s.width
			if width == 0 {
				width = seqPadding
			}
			b.WriteString(pad(seq, width))
		}
	}
	return b.String()
}

func pad(v int64, width int) string {
	s := strconv.FormatInt(v, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
