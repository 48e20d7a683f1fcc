package netopt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Subscriber keeps a Table in sync with retained MQTT messages published
// under <topic>/<key>.
type Subscriber struct {
	table  *Table
	topic  string
	client mqtt.Client
}

// Subscribe connects to broker and feeds every <topic>/<key> message with
// a JSON payload into table.
func Subscribe(table *Table, broker, clientID, topic string) (*Subscriber, error) {
	s := &Subscriber{table: table, topic: strings.TrimSuffix(topic, "/")}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		log.Info().Str("addr", broker).Str("topic", s.topic).Msg("mqtt connected")
		// subscriptions do not survive a reconnect with a clean session
		tok := c.Subscribe(s.topic+"/#", 0, func(_ mqtt.Client, msg mqtt.Message) {
			s.handle(msg.Topic(), msg.Payload())
		})
		go func() {
			if tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
				log.Warn().Err(tok.Error()).Str("topic", s.topic).Msg("mqtt subscribe failed")
			}
		}()
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("addr", broker).Msg("mqtt connection lost")
	}

	s.client = mqtt.NewClient(opts)
	tok := s.client.Connect()
	if !tok.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return s, nil
}

func (s *Subscriber) handle(topic string, payload []byte) {
	key, ok := strings.CutPrefix(topic, s.topic+"/")
	if !ok || key == "" {
		return
	}
	if !json.Valid(payload) {
		log.Debug().Str("topic", topic).Msg("ignoring non-JSON network option")
		return
	}
	s.table.Set(key, payload)
}

func (s *Subscriber) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Unsubscribe(s.topic + "/#").WaitTimeout(time.Second)
		s.client.Disconnect(250)
	}
}
