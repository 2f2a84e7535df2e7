package trace

import "strconv"

// Lane is a trace stimulus port number. Each lane carries one kind of value.
type Lane int

const (
	// LanePrintf carries stdout and stderr text, one byte per write.
	LanePrintf Lane = iota
	// LaneGenerator is reserved for the signal generator.
	LaneGenerator
	// LaneSample carries the first sample of every batch as a 16-bit value.
	LaneSample
	// LaneButtonTiming carries button handler service time in cycles (32-bit).
	LaneButtonTiming
	// LaneSampleTiming carries sample handler service time in cycles (32-bit).
	LaneSampleTiming

	// NumLanes is the number of lanes the firmware defines.
	NumLanes = 5
)

var laneNames = [NumLanes]string{
	"printf",
	"generator",
	"sample",
	"button_timing",
	"sample_timing",
}

// String returns the lane name used in metrics labels and health components.
func (l Lane) String() string {
	if l < 0 || int(l) >= NumLanes {
		return "lane" + strconv.Itoa(int(l))
	}
	return laneNames[l]
}

// Valid reports whether l is a defined lane.
func (l Lane) Valid() bool {
	return l >= 0 && int(l) < NumLanes
}
