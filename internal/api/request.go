package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tablelock/internal/lock"
)

// maxDurationSeconds is the largest duration representable as a time.Duration.
const maxDurationSeconds = float64(math.MaxInt64) / float64(time.Second)

// identifier accepts a JSON string or number. null decodes to "".
type identifier string

func (id *identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = identifier(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("identifier must be a string or number: %w", err)
		}
		*id = identifier(n.String())
	}
	return nil
}

// seconds accepts a JSON number or a numeric string.
type seconds struct {
	value float64
	set   bool
}

func (s *seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = seconds{}
		return nil
	}

	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return fmt.Errorf("duration must be numeric: %w", err)
	}
	*s = seconds{value: v, set: true}
	return nil
}

// Duration converts s to a positive, finite time.Duration.
func (s seconds) Duration() (time.Duration, error) {
	if !s.set || math.IsNaN(s.value) || math.IsInf(s.value, 0) {
		return 0, lock.ErrInvalidArgument
	}
	if s.value <= 0 || s.value >= maxDurationSeconds {
		return 0, lock.ErrInvalidArgument
	}
	d := time.Duration(s.value * float64(time.Second))
	if d <= 0 {
		return 0, lock.ErrInvalidArgument
	}
	return d, nil
}

type lockRequest struct {
	TableID  identifier `json:"tableId"`
	UserID   identifier `json:"userId"`
	Duration seconds    `json:"duration"`
}

type unlockRequest struct {
	TableID identifier `json:"tableId"`
	UserID  identifier `json:"userId"`
}

// decodeJSON reads a single JSON object from the request body into v.
// Any decoding failure, including data after the object, is reported as
// lock.ErrInvalidArgument.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return errors.Join(lock.ErrInvalidArgument, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after JSON object")
		}
		return errors.Join(lock.ErrInvalidArgument, err)
	}
	return nil
}
