package analytics

// PredictionsBy returns how many predictions a user has made in this process.
func (r *MemoryRecorder) PredictionsBy(userID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byUser[userID]
}
