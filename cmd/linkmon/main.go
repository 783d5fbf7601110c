package main

import (
	"context"
	"flag"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/robotalks/valvelink/pkg/radio/mqtt"
	"github.com/robotalks/valvelink/pkg/telemetry"
)

var (
	mqttURL = "mqtt://localhost:1883/valvelink/"
	air     bool
)

func init() {
	if val := os.Getenv("VALVELINK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&air, "air", air, "Also dump packets of the MQTT air transport.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(context.Background()); err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		switch {
		case strings.HasSuffix(topic, "/meta"):
			log.Printf("%s: %s", topic, string(payload))
			return
		case strings.HasPrefix(topic, "air/"):
			if air {
				log.Printf("%s: % x", topic, payload)
			}
			return
		}
		typed, err := telemetry.DecodeTyped(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			log.Printf("%s: decode error: (type_id=%x) %v", topic, typed.TypeId, err)
			return
		}
		log.Printf("%s: [%s] %s", topic,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(), msg.String())
	}))
	<-(chan struct{})(nil)
}
