package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

// BaseHTTPSuite carries the shared client and config of every end-to-end
// scenario. Scenarios run against a live instance named by SERVER_ADDR
// and are skipped when no instance is reachable.
type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping end-to-end scenarios")
	}
	s.client = &http.Client{Timeout: 30 * time.Second}
}

// Step prints a colorized header so scenario logs stay readable.
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call performs one JSON request against the running server, logs it, and
// decodes the response body into out when out is non-nil.
func (s *BaseHTTPSuite) Call(method, path, token string, body any, out any) *http.Response {
	var reader io.Reader
	var requestJSON []byte
	if body != nil {
		var err error
		requestJSON, err = json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(requestJSON)
	}

	req, err := http.NewRequest(method, s.Config.ServerAddr+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err, "request failed: %s %s", method, path)
	defer resp.Body.Close()

	responseJSON, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(requestJSON))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(responseJSON))
	}
	s.T().Log(logBuilder.String())

	if out != nil {
		s.Require().NoError(json.Unmarshal(responseJSON, out),
			"undecodable response for %s %s: %s", method, path, responseJSON)
	}
	return resp
}
