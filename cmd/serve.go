// Copyright © 2018 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/antaris-inc/go-xtce/ccsds"
	"github.com/antaris-inc/go-xtce/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [packet files...]",
	Short: "Serve realtime and dictionary data for a single XTCE document",
	Long: `serve starts an HTTP/WebSocket server that decodes CCSDS packets
against an XTCE document and pushes realtime values to subscribed
clients. Packet files named on the command line are replayed through
the server; with none given, the server only answers dictionary and
websocket requests.`,
	Run: func(cmd *cobra.Command, args []string) {
		roots, err := parseRootFlags(serveRoots)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		channel := make(chan ccsds.Packet, 300)
		serv := &server.Server{
			Host:           serveHost,
			Port:           servePort,
			StaticFiles:    serveStaticFiles,
			SchemaPath:     serveSchemaPath,
			RootContainers: roots,
			PacketChan:     channel,
		}

		go func() {
			rawChannel := make(chan *ccsds.Packet, 300)
			if serveFrames {
				go FrameFileChannel(args, rawChannel)
			} else {
				go PacketFileChannelBPS(serveBPS, args, rawChannel)
			}
			for p := range rawChannel {
				channel <- *p
			}
		}()

		serv.Run()
	},
}

var serveSchemaPath string
var serveHost string
var servePort int
var serveStaticFiles string
var serveRoots []string
var serveBPS int
var serveFrames bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveSchemaPath, "schema", "", "path to the XTCE document to serve")
	serveCmd.MarkFlagRequired("schema")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "interface to bind")
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "port to listen on")
	serveCmd.Flags().StringVar(&serveStaticFiles, "static", ".", "directory of static files to serve")
	serveCmd.Flags().StringArrayVar(&serveRoots, "root", nil, "apid=containerQualifiedName, repeatable")
	serveCmd.Flags().IntVar(&serveBPS, "bps", 0, "limit packet file playback to bits per second")
	serveCmd.Flags().BoolVar(&serveFrames, "frames", false, "treat playback files as VCDU transfer frames instead of raw packet files (--bps is ignored)")
}

func parseRootFlags(specs []string) (map[int]string, error) {
	roots := make(map[int]string, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("--root %q: expected apid=containerQualifiedName", spec)
		}
		apid, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("--root %q: bad apid: %w", spec, err)
		}
		roots[apid] = parts[1]
	}
	return roots, nil
}
