// Package pointers holds tiny helpers for building *T literals inline.
package pointers

func Ptr[T any](v T) *T { return &v }

func Int(v int) *int             { return &v }
func Int64(v int64) *int64       { return &v }
func Float64(v float64) *float64 { return &v }
func String(v string) *string    { return &v }
func Bool(v bool) *bool          { return &v }

func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func StringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
