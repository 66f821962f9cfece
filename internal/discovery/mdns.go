// ABOUTME: mDNS browsing for conversation agents on the local network
// ABOUTME: Resolves _baatein-agent._tcp services into WebSocket URLs
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

const (
	serviceType = "_baatein-agent._tcp"
	defaultPath = "/ws"
)

// AgentInfo describes a discovered agent.
type AgentInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// URL returns the agent's WebSocket endpoint.
func (a AgentInfo) URL() string {
	return fmt.Sprintf("ws://%s:%d%s", a.Host, a.Port, a.Path)
}

// Browser searches the local network for agents.
type Browser struct {
	log    *zap.SugaredLogger
	ctx    context.Context
	cancel context.CancelFunc
	agents chan AgentInfo
}

// NewBrowser creates a browser. Call Browse to start searching.
func NewBrowser(log *zap.SugaredLogger) *Browser {
	ctx, cancel := context.WithCancel(context.Background())
	return &Browser{
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		agents: make(chan AgentInfo, 10),
	}
}

// Browse starts the background query loop.
func (b *Browser) Browse() {
	go b.browseLoop()
}

// Agents returns the channel of discovered agents.
func (b *Browser) Agents() <-chan AgentInfo {
	return b.agents
}

// Stop halts browsing.
func (b *Browser) Stop() {
	b.cancel()
}

// First blocks until one agent is found or the timeout passes.
func (b *Browser) First(timeout time.Duration) (AgentInfo, error) {
	select {
	case agent := <-b.agents:
		return agent, nil
	case <-time.After(timeout):
		return AgentInfo{}, fmt.Errorf("no agent found within %v", timeout)
	case <-b.ctx.Done():
		return AgentInfo{}, b.ctx.Err()
	}
}

func (b *Browser) browseLoop() {
	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				if entry.AddrV4 == nil {
					continue
				}
				agent := AgentInfo{
					Name: entry.Name,
					Host: entry.AddrV4.String(),
					Port: entry.Port,
					Path: pathFromTXT(entry.InfoFields),
				}

				b.log.Infow("discovered agent", "name", agent.Name, "url", agent.URL())

				select {
				case b.agents <- agent:
				case <-b.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: serviceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		mdns.Query(params)
		close(entries)
	}
}

// pathFromTXT extracts a path=... TXT field, defaulting to /ws.
func pathFromTXT(fields []string) string {
	for _, f := range fields {
		if strings.HasPrefix(f, "path=") {
			p := strings.TrimPrefix(f, "path=")
			if !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			return p
		}
	}
	return defaultPath
}
