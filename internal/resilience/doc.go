// Package resilience provides reliability and fault tolerance patterns for
// calls to external dependencies (content extraction, language-model
// summarization, text-to-speech, video metadata, CDN management).
//
// The package supports:
//   - Circuit breakers with a per-dependency registry (breaker)
//   - Retry logic with exponential backoff and jitter (retry)
//   - Deadline enforcement with advisory cancellation (timeout)
//   - Degraded-result fallback strategies (fallback)
//   - Error classification into a closed taxonomy (errclass)
//
// Client composes the layers in the standard order: retry wraps timeout
// wraps the dependency's circuit breaker, and the fallback dispatcher is
// consulted on terminal failure.
//
// Usage Example:
//
//	client := resilience.NewClient(resilience.ClientConfig{
//	    Breakers:  breaker.NewRegistry(nil),
//	    Fallbacks: fallback.NewDispatcher(),
//	})
//	res, err := client.Do(ctx, "summarizer", 30*time.Second, retry.AIPolicy(),
//	    func(ctx context.Context) (any, error) {
//	        return summarize(ctx, article)
//	    })
package resilience
