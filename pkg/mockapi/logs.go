package mockapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/unisrv/unisrv-cli/pkg/metrics"
	"github.com/unisrv/unisrv-cli/pkg/system"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) streamLogs(c *gin.Context) {
	log := system.GetReqLogger(c, s.log)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	rec, found := s.ownedInstance(c, id)
	var frames []client.LogMessage
	if found {
		frames = rec.logs
		if frames == nil {
			frames = defaultLogFrames(rec.detail, time.Now())
		}
	}
	s.mu.Unlock()
	if !found {
		abortWithReason(c, http.StatusNotFound, "instance not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnw("Websocket upgrade failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	metrics.LogStreams.Inc()
	defer metrics.LogStreams.Dec()

	for _, frame := range frames {
		if err := conn.WriteJSON(frame); err != nil {
			log.Debugw("Log stream closed by client", "instance", id, "error", err)
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "end of log"),
		time.Now().Add(time.Second))
}

// defaultLogFrames fakes the boot sequence of an instance followed by the
// command line it runs.
func defaultLogFrames(d client.InstanceDetail, now time.Time) []client.LogMessage {
	ts := now.UnixMilli()
	image := d.Configuration.ContainerImage
	frames := []client.LogMessage{
		{LogType: client.LogTypeState, TimestampMS: ts, State: client.InitStatePullingContainerImage},
		{LogType: client.LogTypeSystem, TimestampMS: ts, Message: fmt.Sprintf("Pulled %s", image)},
		{LogType: client.LogTypeState, TimestampMS: ts, State: client.InitStateOnline},
		{LogType: client.LogTypeState, TimestampMS: ts, State: client.InitStateExecutingContainer},
	}
	cmdline := strings.TrimSpace(image + " " + strings.Join(d.Configuration.Args, " "))
	frames = append(frames, client.LogMessage{LogType: client.LogTypeStdout, TimestampMS: ts, Message: cmdline})
	if d.State != client.InstanceStateActive {
		frames = append(frames, client.LogMessage{
			LogType: client.LogTypeStderr, TimestampMS: ts, Message: "instance " + d.State,
		})
	}
	return frames
}
