package domain

import "time"

// DailyReturn is one day's fractional return, recorded at market close.
type DailyReturn struct {
	Date    time.Time // normalized to midnight UTC
	Returns float64
}

// TreasuryCurve maps a duration label ("1month", "3month", "6month",
// "1year", ...) to an annualized rate. A nil entry means no rate was
// published for that duration on that day.
type TreasuryCurve map[string]*float64
