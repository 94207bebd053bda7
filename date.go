package fatvol

import (
	"time"
)

// DecodeTimestamp converts a FAT directory entry date and time into a time.Time in UTC.
//
// The date counts from the MS-DOS epoch of 1980-01-01:
//  Bits 0-4:  day of month, 1-31
//  Bits 5-8:  month of year, 1-12
//  Bits 9-15: years since 1980, 0-127
// The time has a granularity of 2 seconds:
//  Bits 0-4:   2 second count, 0-29
//  Bits 5-10:  minutes, 0-59
//  Bits 11-15: hours, 0-23
//
// A day or month of 0 is invalid and yields the zero time.Time so IsZero can be checked.
// Out of range values of the other fields are normalized by time.Date.
func DecodeTimestamp(date, tm uint16) time.Time {
	day := int(date & 0x1F)
	month := int(date >> 5 & 0x0F)
	year := 1980 + int(date>>9)

	if day == 0 || month == 0 {
		return time.Time{}
	}

	seconds := int(tm&0x1F) * 2
	minutes := int(tm >> 5 & 0x3F)
	hours := int(tm >> 11)

	return time.Date(year, time.Month(month), day, hours, minutes, seconds, 0, time.UTC)
}
