package framer

// Observer receives transfer events, typically to feed metrics.
// Calls happen on the goroutine running the connection.
type Observer interface {
	ConnectionOpened()
	FrameReceived(length uint32)
	Fill(n int)
	ConnectionClosed(frames int, err error)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened()           {}
func (nopObserver) FrameReceived(uint32)        {}
func (nopObserver) Fill(int)                    {}
func (nopObserver) ConnectionClosed(int, error) {}
