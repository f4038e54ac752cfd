package carrier

import (
	"strconv"
	"strings"

	"github.com/go-faster/jx"
)

// Known field names, primary first. Payloads seen in the wild put them at
// the top level, under a "data" object, or under the first element of a
// "data" array.
var (
	trackingKeys    = []string{"tracking_code", "tracking"}
	trackingAltKeys = []string{"trackingCode", "tracking_number", "code", "barcode", "colis"}
	statusKeys      = []string{"status"}
	statusAltKeys   = []string{"statut", "last_status", "new_status", "status_name", "state"}
)

// shape holds the scalar fields of a carrier document at the two levels
// the carrier uses.
type shape struct {
	top  map[string]string
	data map[string]string
}

func parseShape(raw []byte) (*shape, error) {
	s := &shape{top: map[string]string{}, data: map[string]string{}}
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return nil, ErrMalformedWebhook
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		k := string(key)
		if k == "data" {
			return s.parseData(d)
		}
		return scalar(d, k, s.top)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *shape) parseData(d *jx.Decoder) error {
	switch d.Next() {
	case jx.Object:
		return scalars(d, s.data)
	case jx.Array:
		first := true
		return d.Arr(func(d *jx.Decoder) error {
			if !first || d.Next() != jx.Object {
				return d.Skip()
			}
			first = false
			return scalars(d, s.data)
		})
	default:
		return d.Skip()
	}
}

func scalars(d *jx.Decoder, into map[string]string) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return scalar(d, string(key), into)
	})
}

func scalar(d *jx.Decoder, key string, into map[string]string) error {
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return err
		}
		into[key] = v
	case jx.Number:
		v, err := d.Num()
		if err != nil {
			return err
		}
		into[key] = v.String()
	case jx.Bool:
		v, err := d.Bool()
		if err != nil {
			return err
		}
		into[key] = strconv.FormatBool(v)
	default:
		return d.Skip()
	}
	return nil
}

// lookup probes primary keys at the top level, then under data, then the
// alternate keys in the same order. Top-level values for which skip
// reports true are ignored.
func (s *shape) lookup(primary, alt []string, skip func(string) bool) string {
	for _, keys := range [][]string{primary, alt} {
		for _, k := range keys {
			if v := s.top[k]; v != "" && (skip == nil || !skip(v)) {
				return v
			}
		}
		for _, k := range keys {
			if v := s.data[k]; v != "" {
				return v
			}
		}
	}
	return ""
}

// envelopeResult reports whether v is a request outcome rather than a
// parcel status, as in {"status":"success","data":{...}}.
func envelopeResult(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "success", "ok", "error", "failed", "fail", "true", "false":
		return true
	}
	_, err := strconv.Atoi(v)
	return err == nil
}

func (s *shape) tracking() string {
	return s.lookup(trackingKeys, trackingAltKeys, nil)
}

func (s *shape) status() string {
	return s.lookup(statusKeys, statusAltKeys, envelopeResult)
}
