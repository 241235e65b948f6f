// Package replay rejects reuse of request signatures within the accepted
// timestamp window, closing the replay hole the window alone leaves open.
package replay
