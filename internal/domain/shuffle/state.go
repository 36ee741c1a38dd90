package shuffle

// State describes the cursor position relative to the generated order.
type State int

const (
	StateCanContinueChunk      State = iota // More drawn indices ahead of the cursor
	StateHasEndedAndMoreChunks              // Chunk exhausted, undrawn indices remain
	StateHasEndedNoChunks                   // Every index drawn and the cursor is on the last
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCanContinueChunk:
		return "can_continue_chunk"
	case StateHasEndedAndMoreChunks:
		return "has_ended_and_more_chunks"
	case StateHasEndedNoChunks:
		return "has_ended_no_chunks"
	default:
		return "unknown"
	}
}

func stateOf(pointer, drawn, totalLength int) State {
	switch {
	case pointer+1 < drawn:
		return StateCanContinueChunk
	case drawn < totalLength:
		return StateHasEndedAndMoreChunks
	default:
		return StateHasEndedNoChunks
	}
}
