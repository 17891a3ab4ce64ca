// Package download schedules image fetches. Each submission carries an
// options list; the service resolves it, honours the resolved priority, cache
// and flags, hands the request to an external Fetcher and delivers the result
// on the resolved callback queue.
package download
