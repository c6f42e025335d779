package payload

import "fmt"

// Ratio is a normalized fraction in [0.0, 1.0], used for the critical
// sound volume field.
type Ratio float64

// Validate reports whether r falls within [0.0, 1.0]. NaN fails the
// bounds checks and is rejected here too.
func (r Ratio) Validate() error {
	if !(r >= 0.0 && r <= 1.0) {
		return fmt.Errorf("ratio out of range: %f", float64(r))
	}
	return nil
}
