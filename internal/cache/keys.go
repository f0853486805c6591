package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(remoteAddr string) string {
	return fmt.Sprintf("ratelimit:%s", remoteAddr)
}

func BestResultsKey(queryHash string) string {
	return fmt.Sprintf("results:best:%s", queryHash)
}
