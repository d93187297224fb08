package scheduler

// maxBackoffShift bounds the exponent of the poll backoff.
const maxBackoffShift = 6

// BackoffMinutes returns the delay before the next poll after errors consecutive failures:
// poll * 2^min(errors, 6), capped at capMinutes.
func BackoffMinutes(pollMinutes, errors, capMinutes int) int {
	pollMinutes = max(pollMinutes, 1)
	shift := min(max(errors, 0), maxBackoffShift)
	return min(pollMinutes<<shift, max(capMinutes, 1))
}
