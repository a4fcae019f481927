// Command outstation runs a single DNP3 outstation over TCP, serving the
// point database described by a device profile INI file.
package main

import (
	"flag"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3"
	"github.com/dnp3go/dnp3/pkg/config"
	"github.com/dnp3go/dnp3/pkg/objects"
	"github.com/dnp3go/dnp3/pkg/outstation"
)

func main() {
	profilePath := flag.String("profile", "", "device profile INI path")
	addr := flag.String("listen", "127.0.0.1:20000", "tcp listen address")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	profile := config.Profile{
		Channel:         config.DefaultChannelConfig(),
		EventCapacities: outstation.DefaultEventCapacities(),
	}
	if *profilePath != "" {
		p, err := config.Parse(*profilePath)
		if err != nil {
			log.WithError(err).Fatal("failed to parse device profile")
		}
		profile = *p
	}
	profile.Channel.TCP.Address = *addr
	profile.Channel.Link.LocalAddr = 1
	profile.Channel.Link.RemoteAddr = 1024

	db := outstation.NewDatabase(profile.EventCapacities)
	for _, pc := range profile.Points {
		db.AddPoint(outstation.Point{
			Type:            pc.Type,
			Index:           pc.Index,
			StaticVariation: pc.StaticVariation,
			EventVariation:  pc.EventVariation,
			EventClass:      pc.EventClass,
			Deadband:        pc.Deadband,
		})
	}

	rt := dnp3.NewRuntime(1)
	server, err := dnp3.CreateTCPServer(rt, profile.Channel)
	if err != nil {
		log.WithError(err).Fatal("failed to create tcp server")
	}
	log.WithField("address", *addr).Info("outstation listening")

	_, err = server.AddOutstation(outstation.DefaultConfig(), db, demoApplication{}, outstation.NullControlHandler{})
	if err != nil {
		log.WithError(err).Fatal("failed to accept master connection")
	}

	select {}
}

type demoApplication struct{}

func (demoApplication) Now() objects.Timestamp        { return objects.NewTimestamp(time.Now()) }
func (demoApplication) ColdRestartDelayMillis() uint16 { return 2000 }
func (demoApplication) WarmRestartDelayMillis() uint16 { return 500 }
