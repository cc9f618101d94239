package u

import (
	"fmt"
)

func Must(err error) {
	if err != nil {
		panic(err)
	}
}

// PanicIf panics with an optional, printf-style message when cond is true
func PanicIf(cond bool, args ...any) {
	if !cond {
		return
	}
	s := "condition failed"
	if len(args) > 0 {
		s = fmt.Sprintf("%s", args[0])
		if len(args) > 1 {
			s = fmt.Sprintf(s, args[1:]...)
		}
	}
	panic(s)
}
