package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is one Server-Sent Event. Type comes from the "event:" field and is
// empty for default events; Data joins all "data:" lines with newlines.
type Event struct {
	Type string
	Data string
}

// Scanner reads Server-Sent Events off a stream. Events are blank-line
// delimited; comment lines (leading ":") and unknown fields are skipped.
//
//	sc := sse.NewScanner(body)
//	for sc.Next() {
//		ev := sc.Event()
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	reader  *bufio.Reader
	current Event
	err     error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event. It returns false on EOF or error; use
// Err to tell the two apart.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	s.current = Event{}

	var dataLines []string
	var eventType string
	haveData := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				// A stream truncated mid-event still yields what was read.
				if haveData {
					s.current = Event{Type: eventType, Data: strings.Join(dataLines, "\n")}
					s.err = io.EOF
					return true
				}
				s.err = io.EOF
				return false
			}
			s.err = err
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if haveData {
				s.current = Event{Type: eventType, Data: strings.Join(dataLines, "\n")}
				return true
			}
			eventType = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			field = line
			value = ""
		} else {
			// Exactly one leading space is stripped from the value.
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			haveData = true
		case "event":
			eventType = value
		}
	}
}

// Event returns the event parsed by the last successful Next.
func (s *Scanner) Event() Event {
	return s.current
}

// Err returns the first scan error; a clean EOF reports nil.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
