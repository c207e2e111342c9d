package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/falllog/pkg/analyzer"
	"github.com/ccollicutt/falllog/pkg/output"
	"github.com/ccollicutt/falllog/pkg/telemetry"
)

type fakeToken struct {
	paho.Token
	done bool
	err  error
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	connectErr   error
	publishErr   error
	stall        bool
	messages     []published
	disconnected bool
}

func (c *fakeClient) Connect() paho.Token {
	return &fakeToken{done: !c.stall, err: c.connectErr}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{done: !c.stall, err: c.publishErr}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testReport(fall bool) *output.Report {
	r := &output.Report{
		Session: output.Session{ID: "abc", Source: "/dev/ttyUSB0", Host: "bench"},
		Summary: output.Summary{HasData: true, Samples: 2},
		Samples: []telemetry.Sample{{Index: 0, Z: 16384}, {Index: 1, Z: 16380}},
		Events:  []analyzer.Event{{Type: analyzer.EventTypeFreeFall}},
	}
	if fall {
		r.Summary.FallDetected = true
		r.Summary.Falls = 1
		r.Events = append(r.Events, analyzer.Event{Type: analyzer.EventTypeFall, DropHeightM: 0.2})
	}
	return r
}

func TestClientOptionsFromURL(t *testing.T) {
	tests := []struct {
		url        string
		server     string
		prefix     string
		user, pass string
		clientID   string
	}{
		{"mqtt://broker:1883", "tcp://broker:1883", DefaultTopicPrefix, "", "", ""},
		{"tcp://broker.local:1883/lab/falls/", "tcp://broker.local:1883", "lab/falls/", "", "", ""},
		{"ssl://u:p@broker:8883/lab?client-id=bench1", "ssl://broker:8883", "lab/", "u", "p", "bench1"},
		{"ws://broker:9001/", "ws://broker:9001", DefaultTopicPrefix, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			opts, prefix, err := ClientOptionsFromURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, prefix)
			require.Len(t, opts.Servers, 1)
			assert.Equal(t, tt.server, opts.Servers[0].String())
			assert.Equal(t, tt.user, opts.Username)
			assert.Equal(t, tt.pass, opts.Password)
			if tt.clientID != "" {
				assert.Equal(t, tt.clientID, opts.ClientID)
			} else {
				assert.Contains(t, opts.ClientID, "falllog-")
			}
		})
	}
}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{}
	p := newMQTTPublisher(client, "lab/", 1, time.Second, discardLogger())

	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Publish(context.Background(), testReport(false)))

	require.Len(t, client.messages, 3)
	assert.Equal(t, "lab/sessions/abc/summary", client.messages[0].topic)
	assert.Equal(t, "lab/sessions/abc/samples", client.messages[1].topic)
	assert.Equal(t, "lab/latest", client.messages[2].topic)
	assert.True(t, client.messages[2].retained)
	assert.Equal(t, byte(1), client.messages[0].qos)

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &summary))
	assert.Contains(t, summary, "summary")
	assert.NotContains(t, summary, "samples")

	var samples []telemetry.Sample
	require.NoError(t, json.Unmarshal(client.messages[1].payload, &samples))
	assert.Len(t, samples, 2)

	require.NoError(t, p.Close())
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_FallAlert(t *testing.T) {
	client := &fakeClient{}
	p := newMQTTPublisher(client, DefaultTopicPrefix, 0, time.Second, discardLogger())

	require.NoError(t, p.Publish(context.Background(), testReport(true)))
	require.Len(t, client.messages, 4)

	alert := client.messages[3]
	assert.Equal(t, "falllog/alerts/fall", alert.topic)

	var body struct {
		Session string           `json:"session"`
		Falls   []analyzer.Event `json:"falls"`
	}
	require.NoError(t, json.Unmarshal(alert.payload, &body))
	assert.Equal(t, "abc", body.Session)
	require.Len(t, body.Falls, 1)
	assert.Equal(t, analyzer.EventTypeFall, body.Falls[0].Type)
}

func TestMQTTPublisher_EmptySamples(t *testing.T) {
	client := &fakeClient{}
	p := newMQTTPublisher(client, DefaultTopicPrefix, 0, time.Second, discardLogger())

	require.NoError(t, p.Publish(context.Background(), &output.Report{Session: output.Session{ID: "x"}}))
	assert.Equal(t, "[]", string(client.messages[1].payload))
}

func TestMQTTPublisher_Errors(t *testing.T) {
	t.Run("connect", func(t *testing.T) {
		p := newMQTTPublisher(&fakeClient{connectErr: errors.New("refused")}, "", 0, time.Second, discardLogger())
		assert.ErrorContains(t, p.Connect(context.Background()), "refused")
	})

	t.Run("timeout", func(t *testing.T) {
		p := newMQTTPublisher(&fakeClient{stall: true}, "", 0, time.Millisecond, discardLogger())
		assert.ErrorIs(t, p.Publish(context.Background(), testReport(false)), ErrPublishTimeout)
	})

	t.Run("publish stops at first failure", func(t *testing.T) {
		client := &fakeClient{publishErr: errors.New("not authorized")}
		p := newMQTTPublisher(client, "", 0, time.Second, discardLogger())
		assert.ErrorContains(t, p.Publish(context.Background(), testReport(false)), "not authorized")
		assert.Len(t, client.messages, 1)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := &fakeClient{}
		p := newMQTTPublisher(client, "", 0, time.Second, discardLogger())
		assert.ErrorIs(t, p.Publish(ctx, testReport(false)), context.Canceled)
	})
}
