// Package gelf ships log entries to a Graylog input as GELF 1.1 over UDP.
package gelf

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// Hook is a logrus hook that sends each entry as one GELF datagram.
// Delivery is fire-and-forget.
type Hook struct {
	conn     net.Conn
	hostname string
	service  string
}

// New creates a hook sending to addr (e.g. "172.17.0.1:12201").
func New(addr, service string) (*Hook, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service
	}
	return &Hook{conn: conn, hostname: hostname, service: service}, nil
}

func (h *Hook) Levels() []log.Level { return log.AllLevels }

func (h *Hook) Fire(e *log.Entry) error {
	payload, err := json.Marshal(h.message(e))
	if err != nil {
		return nil
	}
	h.conn.Write(payload)
	return nil
}

// message builds the GELF document. Entry fields become additional "_"
// fields.
func (h *Hook) message(e *log.Entry) map[string]any {
	m := map[string]any{
		"version":       "1.1",
		"host":          h.hostname,
		"short_message": e.Message,
		"timestamp":     float64(e.Time.UnixNano()) / float64(time.Second),
		"level":         syslogLevel(e.Level),
		"_service":      h.service,
	}
	for k, v := range e.Data {
		if k == "id" {
			k = "field_id"
		}
		switch t := v.(type) {
		case error:
			m["_"+k] = t.Error()
		case string, bool, int, int64, float64:
			m["_"+k] = t
		default:
			m["_"+k] = fmt.Sprint(t)
		}
	}
	return m
}

func (h *Hook) Close() error { return h.conn.Close() }

func syslogLevel(l log.Level) int {
	switch l {
	case log.PanicLevel:
		return 1
	case log.FatalLevel:
		return 2
	case log.ErrorLevel:
		return 3
	case log.WarnLevel:
		return 4
	case log.InfoLevel:
		return 6
	}
	return 7
}
