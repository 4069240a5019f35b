package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/pga308/pkg/config"
	fx "github.com/robotalks/pga308/pkg/framework"
	"github.com/robotalks/pga308/pkg/monitor"
	"github.com/robotalks/pga308/pkg/mqtt"
)

func init() {
	config.SetupFlags()
}

func run() error {
	conf, err := config.Resolve()
	if err != nil {
		return err
	}
	dev, closer, err := conf.NewDevice()
	if err != nil {
		return err
	}
	defer closer.Close()

	q, err := mqtt.NewQueueFromURL(conf.MQTT.URL)
	if err != nil {
		return err
	}
	id := conf.MQTT.ID
	if id == "" {
		id = mqtt.DeviceID()
	}
	mon := monitor.New(dev, q, id)
	mon.Interval = conf.Interval()
	mon.Format = conf.MQTT.Format
	q.OnConnect = func(*mqtt.Queue) { mon.Wake() }

	if err := q.Connect(); err != nil {
		return err
	}
	defer q.Close()
	glog.Infof("publishing to %s%s/%s every %v", q.TopicPrefix, id, monitor.TopicSnapshot, mon.Interval)

	return fx.NewRunner().HandleSignals().Go(mon).Wait()
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		glog.Exit(err)
	}
	glog.Flush()
}
