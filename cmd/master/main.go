// Command master connects to a DNP3 outstation over TCP, runs the
// startup-integrity lifecycle, and logs the group, variation and value
// count of every object header it receives.
package main

import (
	"context"
	"flag"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3"
	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/config"
	"github.com/dnp3go/dnp3/pkg/master"
	"github.com/dnp3go/dnp3/pkg/objects"
)

func main() {
	addr := flag.String("connect", "127.0.0.1:20000", "outstation tcp address")
	pollSeconds := flag.Int("poll", 30, "class 0/1/2/3 integrity poll period, in seconds")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config.DefaultChannelConfig()
	cfg.TCP.Address = *addr
	cfg.Link.LocalAddr = 1024

	rt := dnp3.NewRuntime(1)
	mc, err := dnp3.CreateMasterChannel(context.Background(), rt, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to create master channel")
	}

	assoc, err := mc.AddAssociation(1, master.DefaultAssociationConfig(), loggingReadHandler{}, loggingAssociationHandler{})
	if err != nil {
		log.WithError(err).Fatal("failed to add association")
	}

	var class0 []byte
	for _, v := range []uint8{1, 2, 3, 4} {
		b, encErr := objects.EncodeGroup(60, v, nil, false)
		if encErr != nil {
			log.WithError(encErr).Fatal("failed to build integrity poll request")
		}
		class0 = append(class0, b...)
	}
	dnp3.AddPoll(assoc, class0, time.Duration(*pollSeconds)*time.Second)

	select {}
}

type loggingReadHandler struct{}

func (loggingReadHandler) BeginFragment(rt master.ReadType, header app.ResponseHeader) {
	log.WithField("readType", rt).Debug("response fragment begin")
}

func (loggingReadHandler) HandleObjectHeader(h objects.ObjectHeader) {
	log.WithFields(log.Fields{
		"group":     h.Group,
		"variation": h.Variation,
		"count":     len(h.Values),
	}).Info("received object header")
}

func (loggingReadHandler) EndFragment(rt master.ReadType, header app.ResponseHeader) {}

type loggingAssociationHandler struct{}

func (loggingAssociationHandler) OnStateChange(s master.AssociationState) {
	log.WithField("state", s.String()).Info("association state changed")
}

func (loggingAssociationHandler) OnTaskStart(label string) {
	log.WithField("task", label).Debug("task started")
}

func (loggingAssociationHandler) OnTaskSuccess(label string) {
	log.WithField("task", label).Debug("task succeeded")
}

func (loggingAssociationHandler) OnTaskFail(label string, err error) {
	log.WithFields(log.Fields{"task": label, "error": err}).Warn("task failed")
}

func (loggingAssociationHandler) OnKeepAliveFailure() {
	log.Warn("keep-alive check failed")
}
