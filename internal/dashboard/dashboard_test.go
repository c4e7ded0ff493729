package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/topoview/internal/card"
	"github.com/ziadkadry99/topoview/internal/config"
	"github.com/ziadkadry99/topoview/internal/server"
)

const homeSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100">
  <script>alert(1)</script>
  <g data-node-id="Gateway"><rect x="10" y="10" width="30" height="30"/></g>
  <g data-node-id="Switch"><rect x="150" y="10" width="30" height="30"/></g>
  <path class="edge" data-edge-left="Gateway" data-edge-right="Switch" d="M40 25 L150 25" stroke-width="1"/>
</svg>`

const homePayload = `{"edges":[{"left":"Gateway","right":"Switch"}],"node_types":{"Gateway":"gateway","Switch":"switch"},"node_status":{"Switch":{"entity_id":"switch.core","state":"on"}}}`

// setupTest runs a preview server with the dashboard mounted on it, the
// way the preview command wires them.
func setupTest(t *testing.T) (*Dashboard, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "home.svg"), []byte(homeSVG), 0o644)
	os.WriteFile(filepath.Join(dir, "home.json"), []byte(homePayload), 0o644)

	srv, err := server.New(server.Config{Namespace: "network_map", FixturesDir: dir})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	cfg := config.DefaultConfig()
	cfg.BaseURL = ts.URL
	cfg.Token = "preview"
	cfg.MoreInfoDelayMS = 10
	d := New(cfg, nil)
	d.RegisterRoutes(srv.Router())
	t.Cleanup(d.Close)
	return d, ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeSnapshot(t *testing.T, resp *http.Response) card.Snapshot {
	t.Helper()
	var snap card.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	return snap
}

func TestPageRendersSanitizedCard(t *testing.T) {
	_, ts := setupTest(t)

	resp := get(t, ts, "/dashboard/home")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var b bytes.Buffer
	if _, err := b.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	body := b.String()
	for _, want := range []string{`class="topology-card"`, `data-node-id="Switch"`, "Select a node or edge."} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "<script>alert") {
		t.Error("page contains the diagram's script")
	}
}

func TestEventsDriveTheCard(t *testing.T) {
	_, ts := setupTest(t)

	resp := post(t, ts, "/dashboard/home/events", `{"type":"click","x":160,"y":20}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Snapshot.Selection.SelectedNode != "Switch" {
		t.Errorf("selected = %q, want %q", out.Snapshot.Selection.SelectedNode, "Switch")
	}
	if out.Snapshot.Detail == nil || out.Snapshot.Detail.EntityID != "switch.core" {
		t.Errorf("expected detail for switch.core, got %+v", out.Snapshot.Detail)
	}

	resp = post(t, ts, "/dashboard/home/events", `{"type":"click","action":"zoom-in"}`)
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Snapshot.Transform.Scale != 1.2 {
		t.Errorf("scale = %v, want 1.2", out.Snapshot.Transform.Scale)
	}
	if out.Snapshot.Selection.SelectedNode != "Switch" {
		t.Error("control click must not change the selection")
	}

	resp = post(t, ts, "/dashboard/home/events", `{"type":"wheel","delta_y":100}`)
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !out.PreventDefault {
		t.Error("expected wheel to prevent default")
	}

	if resp := post(t, ts, "/dashboard/home/events", `{"type":"click","action":"explode"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown action: expected 400, got %d", resp.StatusCode)
	}
}

func TestTabAndBack(t *testing.T) {
	_, ts := setupTest(t)
	post(t, ts, "/dashboard/home/events", `{"type":"click","x":160,"y":20}`)

	snap := decodeSnapshot(t, post(t, ts, "/dashboard/home/tab", `{"tab":"stats"}`))
	if snap.Selection.ActiveTab != "stats" {
		t.Errorf("tab = %q, want stats", snap.Selection.ActiveTab)
	}
	if resp := post(t, ts, "/dashboard/home/tab", `{"tab":"graphs"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad tab: expected 400, got %d", resp.StatusCode)
	}

	snap = decodeSnapshot(t, post(t, ts, "/dashboard/home/back", ""))
	if snap.Selection.SelectedNode != "" {
		t.Errorf("expected selection cleared, got %q", snap.Selection.SelectedNode)
	}
}

func TestMoreInfo(t *testing.T) {
	_, ts := setupTest(t)

	if resp := post(t, ts, "/dashboard/home/more-info", `{"entity_id":"switch.core"}`); resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
	if resp := post(t, ts, "/dashboard/home/more-info", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing entity: expected 400, got %d", resp.StatusCode)
	}
}

func TestPublishedPayloadReachesSession(t *testing.T) {
	d, ts := setupTest(t)
	get(t, ts, "/dashboard/home/snapshot")

	update := `{"edges":[{"left":"Gateway","right":"AP"}],"node_types":{"AP":"ap"}}`
	req, _ := http.NewRequest("POST", ts.URL+"/api/network_map/home/payload", strings.NewReader(update))
	req.Header.Set("Authorization", "Bearer preview")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("publishing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("publish: expected 202, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		snap := decodeSnapshot(t, get(t, ts, "/dashboard/home/snapshot"))
		if snap.Payload != nil && snap.Payload.HasNode("AP") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pushed payload never reached the session")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if got := d.Sessions(); len(got) != 1 || got[0] != "home" {
		t.Errorf("sessions = %v, want [home]", got)
	}
}

func TestCloseSession(t *testing.T) {
	d, ts := setupTest(t)
	get(t, ts, "/dashboard/home/snapshot")

	req, _ := http.NewRequest("DELETE", ts.URL+"/dashboard/home", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	if len(d.Sessions()) != 0 {
		t.Errorf("expected no sessions, got %v", d.Sessions())
	}
	if d.CloseSession("home") {
		t.Error("expected second close to report no session")
	}
}
