// Command linkprobe is an interactive shell for poking a board: through a
// controller's USB stream, or straight at an encoder board over spidev.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"muffin/host/bridge"
	"muffin/host/serial"
	"muffin/host/spidev"
	"muffin/link"
	"muffin/protocol"
)

var (
	device   = flag.String("serial", "/dev/ttyACM0", "controller USB serial device")
	spiPort  = flag.String("spi", "", "spidev port of an encoder board; overrides -serial")
	spiBaud  = flag.Uint("spi-baud", 2_000_000, "SPI clock in Hz")
	checksum = flag.Bool("crc", false, "encoder board link uses CRC16 trailers")
	timeout  = flag.Duration("timeout", time.Second, "reply timeout")
	evalOnly = flag.Bool("e", false, "run the command given as arguments and exit")
)

const endpointKey = "$endpoint"

func main() {
	flag.Parse()
	defer glog.Flush()
	glog.V(1).Infof("linkprobe, link protocol %s", protocol.Version)

	ep, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkprobe: %v\n", err)
		os.Exit(1)
	}
	defer ep.Close()

	shell := ishell.New()
	shell.Set(endpointKey, ep)
	shell.SetPrompt("link> ")
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}

	if *evalOnly {
		if err := shell.Process(flag.Args()...); err != nil {
			fmt.Fprintf(os.Stderr, "linkprobe: %v\n", err)
			os.Exit(1)
		}
		return
	}
	shell.Run()
}

func open() (endpoint, error) {
	if *spiPort != "" {
		cfg := link.Config{Mode: link.Mode0, Order: link.MSBFirst, Baud: uint32(*spiBaud)}
		m, err := spidev.Open(*spiPort, cfg, protocol.Codec{Checksum: *checksum})
		if err != nil {
			return nil, err
		}
		glog.Infof("polling encoder board on %s", m)
		return spiEndpoint{Master: m, interval: time.Millisecond}, nil
	}

	port, err := serial.Open(serial.DefaultConfig(*device))
	if err != nil {
		return nil, err
	}
	glog.Infof("connected to controller on %s", *device)
	return streamEndpoint{Bridge: bridge.New(port)}, nil
}

func endpointFrom(c *ishell.Context) endpoint {
	return c.Get(endpointKey).(endpoint)
}

var commands = []*ishell.Cmd{
	{
		Name: "ping",
		Help: "ping [count]: round trip a heartbeat",
		Func: func(c *ishell.Context) {
			count := 1
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil || n < 1 {
					c.Err(fmt.Errorf("bad count %q", c.Args[0]))
					return
				}
				count = n
			}
			ep := endpointFrom(c)
			for i := 0; i < count; i++ {
				rtt, err := ep.Ping(*timeout)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("reply in %v\n", rtt)
			}
		},
	},
	{
		Name: "indicator",
		Help: "indicator <index> <value>: set an encoder's indicator ring",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: indicator <index> <value>"))
				return
			}
			index, err := strconv.ParseUint(c.Args[0], 0, 8)
			if err != nil {
				c.Err(err)
				return
			}
			value, err := strconv.ParseUint(c.Args[1], 0, 16)
			if err != nil {
				c.Err(err)
				return
			}
			if err := endpointFrom(c).SetIndicator(uint8(index), uint16(value)); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name: "watch",
		Help: "watch [seconds]: print frames from the board",
		Func: func(c *ishell.Context) {
			d := 5 * time.Second
			if len(c.Args) > 0 {
				s, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				d = time.Duration(s) * time.Second
			}
			ep := endpointFrom(c)
			end := time.Now().Add(d)
			for time.Now().Before(end) {
				m, err := ep.Next(time.Until(end))
				if err == errNoFrame {
					break
				}
				if err != nil {
					glog.V(1).Infof("watch: %v", err)
					continue
				}
				c.Println(describe(&m))
			}
		},
	},
	{
		Name: "stats",
		Help: "show stream error counters",
		Func: func(c *ishell.Context) {
			switch ep := endpointFrom(c).(type) {
			case streamEndpoint:
				c.Printf("stream errors: %d\n", ep.StreamErrors())
			default:
				c.Println("no counters on this endpoint")
			}
		},
	},
}
