// Package clock centralises time access so that expiry logic can be tested
// deterministically.
package clock

import "time"

// NowFunc returns the current time. Tests override it to freeze the clock.
var NowFunc = time.Now

// Now reports the current time via NowFunc.
func Now() time.Time { return NowFunc() }
