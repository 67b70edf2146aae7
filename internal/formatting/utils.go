package formatting

import (
	"encoding/json"
	"fmt"
)

// PrettyJSON renders v as two-space indented JSON. Values that cannot be
// marshaled fall back to their %v form so output commands never fail on a
// single odd value.
func PrettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
