package validation

import (
	"encoding/base64"

	validation "github.com/jellydator/validation"
)

// Base64Key validates that a string is standard base64 decoding to exactly size
// bytes. Empty strings pass so Required can report them.
func Base64Key(size int) validation.Rule {
	return validation.By(func(value any) error {
		s, ok := value.(string)
		if !ok {
			return validation.NewError("validation_base64_type", "must be a string")
		}
		if s == "" {
			return nil
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return validation.NewError("validation_base64", "must be valid base64-encoded data")
		}
		n := len(decoded)
		clear(decoded)
		if n != size {
			return validation.NewError("validation_base64_key_size", "must decode to the required key size").
				SetParams(map[string]any{"size": size})
		}
		return nil
	})
}
