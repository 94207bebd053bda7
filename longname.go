package fatvol

import (
	"unicode/utf16"

	"github.com/golang/glog"
)

// longName collects the long file name fragments preceding a short entry.
// Fragments are stored from the last (highest ordinal) down to ordinal 1,
// each at offset 13 * (ordinal-1) of the buffer.
type longName struct {
	chars [lfnMaxFragments * lfnCharsPerEntry]uint16

	// started is set once a fragment with the last flag was seen.
	started bool
	// complete is set once ordinal 1 completed the run.
	complete  bool
	fragments int
	next      int
	checksum  byte
}

func (l *longName) reset() {
	*l = longName{}
}

// pending reports fragments which are not yet consumed by a short entry.
func (l *longName) pending() bool {
	return l.started
}

// add stores the fragment e. Fragments out of order discard the whole run.
func (l *longName) add(e longFilenameEntry) {
	ordinal := int(e.Sequence & lfnOrdinalMask)
	if ordinal == 0 || ordinal > lfnMaxFragments {
		glog.Warningf("dir: long name fragment with invalid ordinal %d", ordinal)
		l.reset()
		return
	}

	if e.Sequence&lfnLast != 0 {
		if l.started {
			glog.Warningf("dir: long name run of %d fragments interrupted", l.fragments)
		}
		l.reset()
		l.started = true
		l.fragments = ordinal
		l.checksum = e.Checksum
	} else if !l.started || l.complete || ordinal != l.next || e.Checksum != l.checksum {
		glog.Warningf("dir: unexpected long name fragment %d", ordinal)
		l.reset()
		return
	}

	pos := lfnCharsPerEntry * (ordinal - 1)
	pos += copy(l.chars[pos:], e.First[:])
	pos += copy(l.chars[pos:], e.Second[:])
	copy(l.chars[pos:], e.Third[:])

	l.next = ordinal - 1
	if ordinal == 1 {
		l.complete = true
	}
}

// take returns the collected name for the short entry with the given 8.3 name and resets the run.
// ok is false if there is no complete name or it belongs to another short entry.
func (l *longName) take(shortName [11]byte) (name string, ok bool) {
	defer l.reset()

	if !l.complete {
		if l.started {
			glog.Warningf("dir: incomplete long name for %q", string(shortName[:]))
		}
		return "", false
	}

	if sum := shortNameChecksum(shortName); sum != l.checksum {
		glog.Warningf("dir: long name checksum %#02x does not match %#02x of %q", l.checksum, sum, string(shortName[:]))
		return "", false
	}

	chars := l.chars[:l.fragments*lfnCharsPerEntry]
	for i, c := range chars {
		if c == 0x0000 {
			chars = chars[:i]
			break
		}
	}
	// Some writers pad with 0xFFFF without a terminator.
	for len(chars) > 0 && chars[len(chars)-1] == 0xFFFF {
		chars = chars[:len(chars)-1]
	}

	return string(utf16.Decode(chars)), true
}

// shortNameChecksum is the checksum over the 8.3 name stored in every fragment of its long name.
func shortNameChecksum(name [11]byte) byte {
	var sum byte
	for _, c := range name {
		sum = (sum&1)<<7 + sum>>1 + c
	}
	return sum
}
