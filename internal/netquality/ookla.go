package netquality

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/showwin/speedtest-go/speedtest"
)

const DefaultCandidates = 5

// SpeedtestClient measures against the public speedtest.net server network.
type SpeedtestClient struct {
	// Candidates is how many of the nearest servers are pinged when picking
	// the best one.
	Candidates int
	// HTTPClient is used for every request; nil means a fresh client per run.
	HTTPClient *http.Client

	// fetch returns the server list; nil uses speedtest.net.
	fetch func(ctx context.Context, hc *http.Client) ([]candidate, error)
}

// candidate is one measurement server as seen by a session.
type candidate interface {
	info() ServerInfo
	ping(ctx context.Context) (time.Duration, error)
	// download and upload return bytes/second.
	download(ctx context.Context) (float64, error)
	upload(ctx context.Context) (float64, error)
}

func NewSpeedtestClient(candidates int) *SpeedtestClient {
	if candidates < 1 {
		candidates = DefaultCandidates
	}
	return &SpeedtestClient{Candidates: candidates}
}

func (c *SpeedtestClient) Configure(ctx context.Context, timeout time.Duration) (Session, error) {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	fetch := c.fetch
	if fetch == nil {
		fetch = fetchSpeedtestServers
	}

	servers, err := fetch(ctx, hc)
	if err != nil {
		return nil, &ConfigError{Op: "fetch server list", Err: err}
	}
	if len(servers) == 0 {
		return nil, &ConfigError{Op: "fetch server list", Err: errors.New("no servers returned")}
	}
	n := c.Candidates
	if n < 1 {
		n = DefaultCandidates
	}
	if len(servers) > n {
		servers = servers[:n]
	}
	return &speedtestSession{candidates: servers}, nil
}

func fetchSpeedtestServers(ctx context.Context, hc *http.Client) ([]candidate, error) {
	st := speedtest.New(speedtest.WithDoer(hc))
	servers, err := st.FetchServerListContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, 0, len(servers))
	for _, s := range servers {
		out = append(out, libServer{s})
	}
	return out, nil
}

// libServer adapts *speedtest.Server.
type libServer struct{ s *speedtest.Server }

func (l libServer) info() ServerInfo {
	return ServerInfo{ID: l.s.ID, Name: l.s.Name, Sponsor: l.s.Sponsor, Host: l.s.Host}
}

func (l libServer) ping(ctx context.Context) (time.Duration, error) {
	if err := l.s.PingTestContext(ctx, nil); err != nil {
		return 0, err
	}
	return l.s.Latency, nil
}

func (l libServer) download(ctx context.Context) (float64, error) {
	if err := l.s.DownloadTestContext(ctx); err != nil {
		return 0, err
	}
	return float64(l.s.DLSpeed), nil
}

func (l libServer) upload(ctx context.Context) (float64, error) {
	if err := l.s.UploadTestContext(ctx); err != nil {
		return 0, err
	}
	return float64(l.s.ULSpeed), nil
}

type speedtestSession struct {
	candidates []candidate
	best       candidate
}

func (s *speedtestSession) SelectBestServer(ctx context.Context) (ServerInfo, error) {
	type pinged struct {
		c   candidate
		lat time.Duration
	}
	var ok []pinged
	var lastErr error
	for _, c := range s.candidates {
		lat, err := c.ping(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if lat > 0 {
			ok = append(ok, pinged{c, lat})
		}
	}
	if len(ok) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no server answered the latency test")
		}
		return ServerInfo{}, lastErr
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].lat < ok[j].lat })
	s.best = ok[0].c

	info := s.best.info()
	info.PingMs = float64(ok[0].lat) / float64(time.Millisecond)
	return info, nil
}

func (s *speedtestSession) MeasureDownload(ctx context.Context) (float64, error) {
	if s.best == nil {
		return 0, errors.New("no server selected")
	}
	bps, err := s.best.download(ctx)
	if err != nil {
		return 0, err
	}
	return bps * 8, nil
}

func (s *speedtestSession) MeasureUpload(ctx context.Context) (float64, error) {
	if s.best == nil {
		return 0, errors.New("no server selected")
	}
	bps, err := s.best.upload(ctx)
	if err != nil {
		return 0, err
	}
	return bps * 8, nil
}
