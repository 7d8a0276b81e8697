package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var taskIDParam = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var logNames = map[string]string{
	"build": "build.log",
	"setup": "setup.log",
	"test":  "test.log",
}

// logTailHandler streams a task log over a websocket. The client asks
// for ?task=<id>&log=build|setup|test and receives the current contents
// followed by appended chunks until it disconnects.
func (s *Server) logTailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := r.URL.Query().Get("task")
		logName, ok := logNames[r.URL.Query().Get("log")]
		if !ok || !taskIDParam.MatchString(taskID) {
			writeError(w, http.StatusBadRequest, "need task=<id> and log=build|setup|test")
			return
		}

		path := filepath.Join(s.logsRoot, "task_id_"+taskID, logName)
		f, err := os.Open(path)
		if err != nil {
			writeError(w, http.StatusNotFound, "log not found")
			return
		}
		defer f.Close()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Read pump: the client never sends data, so the first read
		// error is the disconnect signal. Without it a client leaving
		// during a quiet log would keep this handler alive forever.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, rerr := conn.ReadMessage(); rerr != nil {
					return
				}
			}
		}()

		tailLog(conn, f, done)
	}
}

// messageWriter is the websocket write surface tailLog needs.
type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// tailLog copies the file to the connection, then keeps polling for
// appended data until a write fails or done closes.
func tailLog(conn messageWriter, f io.Reader, done <-chan struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.TextMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err == io.EOF {
			select {
			case <-done:
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return
		}
	}
}
