package notifyrepo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/amandev2001/mylib/util/httpx"
)

type httpRepo struct {
	webhookURL string
	client     *http.Client
}

func NewHTTP(webhookURL string) Repo {
	return &httpRepo{webhookURL: webhookURL, client: httpx.Client()}
}

func (r *httpRepo) ReservationReady(n ReservationReady) error {
	body := map[string]any{
		"event": "reservation.ready",
		"data":  n,
	}
	b, _ := json.Marshal(body)
	req, err := http.NewRequest("POST", r.webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook failed: %s", resp.Status)
	}
	return nil
}
