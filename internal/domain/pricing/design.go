package pricing

import "github.com/go-faster/jx"

// maxDesignNesting bounds how many times a design state may be string-encoded.
const maxDesignNesting = 2

// ViewHasContent reports whether a saved canvas state has at least one
// placed object. The state is either a JSON object with an "objects" array
// or a JSON string holding such an object.
func ViewHasContent(raw []byte) bool {
	return viewHasContent(raw, 0)
}

func viewHasContent(raw []byte, depth int) bool {
	if len(raw) == 0 || depth > maxDesignNesting {
		return false
	}
	d := jx.DecodeBytes(raw)
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return false
		}
		return viewHasContent([]byte(s), depth+1)
	case jx.Object:
		placed := false
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "objects" || d.Next() != jx.Array {
				return d.Skip()
			}
			n := 0
			if err := d.Arr(func(d *jx.Decoder) error {
				n++
				return d.Skip()
			}); err != nil {
				return err
			}
			placed = placed || n > 0
			return nil
		})
		return err == nil && placed
	default:
		return false
	}
}
