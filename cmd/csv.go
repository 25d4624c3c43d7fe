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
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antaris-inc/go-xtce/ccsds"
	"github.com/antaris-inc/go-xtce/loader"
	"github.com/antaris-inc/go-xtce/xtce"
	"github.com/spf13/cobra"
)

// csvCmd represents the csv command
var csvCmd = &cobra.Command{
	Use:   "csv",
	Short: "Generate CSV files from CCSDS packet files decoded against an XTCE document",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return errors.New("requires at least one arg")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		generateCsvFiles(cmd, args)
	},
}

var csvSchemaPath string
var csvPath string
var csvRoots []string
var csvRecursive bool
var csvFilepat string

func init() {
	rootCmd.AddCommand(csvCmd)

	csvCmd.Flags().StringVarP(&csvSchemaPath, "schema", "s", "", "path to the XTCE document")
	csvCmd.MarkFlagRequired("schema")
	csvCmd.Flags().StringVarP(&csvPath, "outdir", "o", "./csv", "target directory for csv files")
	csvCmd.MarkFlagRequired("outdir")
	csvCmd.Flags().StringArrayVar(&csvRoots, "root", nil, "apid=containerQualifiedName, repeatable")
	csvCmd.Flags().BoolVarP(&csvRecursive, "recursive", "r", false, "search inside directories for packet files")
	csvCmd.Flags().StringVar(&csvFilepat, "pattern", "", "search for files matching a regular expression")
}

func generateCsvFiles(cmd *cobra.Command, args []string) {
	if Verbose {
		fmt.Printf("schema    =%v\n", csvSchemaPath)
		fmt.Printf("outdir    =%v\n", csvPath)
		fmt.Printf("recursive =%v\n", csvRecursive)
		fmt.Printf("pattern   =%v\n", csvFilepat)
		for i := 0; i < len(args); i++ {
			fmt.Printf(" arg[%d]=%s\n", i, args[i])
		}
	}

	if err := os.MkdirAll(csvPath, os.ModeDir|0770); err != nil {
		fmt.Printf("An error occurred while creating the output directory(%s): %v\n", csvPath, err)
		fmt.Println("Aborting...")
		return
	}

	roots, err := parseRootFlags(csvRoots)
	if err != nil {
		fmt.Println(err)
		return
	}

	ss, err := loader.LoadFile(csvSchemaPath, nil)
	if err != nil {
		fmt.Printf("An error occurred reading the schema %s: %v\n", csvSchemaPath, err)
		return
	}

	writerMap := writerMap{theMap: make(map[int]writerList), maxOpen: 20}
	apidErrors := make(map[int]bool)

	channel := make(chan *ccsds.Packet, 20)
	go PacketFileChannel(args, channel)

	startTime := time.Now()

	var packetCount int
	for pkt := range channel {
		if len(*pkt) < pkt.Length()+7 {
			log.Printf("Short packet (apid=%d).  Ignoring...\n", pkt.APID())
			continue
		}

		packetCount++
		apid := pkt.APID()
		rootName, ok := roots[apid]
		if !ok {
			if apidErrors[apid] {
				continue
			}
			fmt.Printf("APID %d was seen but no matching --root was given\n", apid)
			apidErrors[apid] = true
			continue
		}

		vm, err := xtce.DecodePacket(ss, rootName, []byte(*pkt))
		if err != nil {
			log.Printf("error decoding apid %d against %s: %v\n", apid, rootName, err)
			continue
		}

		writer, ok := writerMap.theMap[apid]
		if !ok || len(writer) == 0 {
			filename := filepath.Join(csvPath, csvFileBaseName(rootName)+".csv")
			w := &csvWriter{apid: apid, filename: filename, buffer: bytes.NewBuffer(make([]byte, 0, 2048)), points: vm.Names()}
			writerMap.put(apid, w)

			if f, err := os.Create(w.filename); err == nil {
				f.Close()
			} else {
				fmt.Printf("An error occurred creating %s: %v\n", w.filename, err)
				fmt.Println("Aborting ...")
				writerMap.closeAll()
				return
			}

			for i, name := range w.points {
				if i > 0 {
					fmt.Fprint(w.buffer, ",")
				}
				fmt.Fprint(w.buffer, name)
			}
			fmt.Fprintf(w.buffer, "\n")
			w.flush()

			writer = writerMap.theMap[apid]
		}

		for _, w := range writer {
			for i, name := range w.points {
				v, ok := vm.Get(name)
				if i > 0 {
					fmt.Fprint(w.buffer, ",")
				}
				if ok {
					if v.Engineering != nil {
						fmt.Fprintf(w.buffer, "%v", v.Engineering)
					} else {
						fmt.Fprintf(w.buffer, "%v", v.Raw)
					}
				}
			}
			fmt.Fprintf(w.buffer, "\n")
			w.flushMaybe()
		}
	}

	writerMap.closeAll()

	elapsed := time.Since(startTime)
	if packetCount > 0 {
		msecPerPacket := (float64(elapsed.Nanoseconds()) / 1000000.0) / float64(packetCount)
		fmt.Printf("%d packets were processed in %s (%f msec/packet).\n", packetCount, elapsed, msecPerPacket)
	}
}

// csvFileBaseName turns a qualified container name like
// "/Root/Telemetry/Housekeeping" into a filesystem-friendly basename.
func csvFileBaseName(qualifiedName string) string {
	trimmed := strings.TrimPrefix(qualifiedName, "/")
	return strings.ReplaceAll(trimmed, "/", "_")
}

//
// csvWriter
//

type csvWriter struct {
	apid      int
	file      *os.File
	filename  string
	buffer    *bytes.Buffer
	age       int
	threshold int
	points    []string
}

func (writer *csvWriter) flushMaybe() {
	if writer.buffer.Len() > writer.threshold {
		writer.flush()
	}
}

func (writer *csvWriter) flush() {
	if len(writer.buffer.Bytes()) < 1 {
		return
	}
	if writer.file == nil {
		file, err := os.OpenFile(writer.filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, os.ModeAppend)
		if err != nil {
			fmt.Printf("error while opening %s: %v\n", writer.filename, err)
			return
		}
		writer.file = file
	}
	_, err := writer.buffer.WriteTo(writer.file)
	if err != nil {
		fmt.Printf("error while writing to %s: %v\n", writer.filename, err)
		return
	}
	writer.buffer.Reset()
}

func (writer *csvWriter) close() {
	writer.flush()
	if writer.file != nil {
		if err := writer.file.Close(); err != nil {
			fmt.Printf("error while closing %s: %v\n", writer.filename, err)
		}
		writer.file = nil
	}
}

//
// Lists of csvWriters
//

type writerList []*csvWriter

func (l writerList) Add(w *csvWriter) writerList {
	if len(l) == 0 {
		return writerList{w}
	}
	for _, old := range l {
		if old == w {
			return l
		}
	}
	return append(l, w)
}

//
// A map between apids and lists of csvWriters
//

type writerMap struct {
	theMap  map[int]writerList
	maxOpen int
}

func (m *writerMap) put(apid int, w *csvWriter) {
	m.theMap[apid] = m.theMap[apid].Add(w)
}

func (m *writerMap) closeAll() {
	for _, writers := range m.theMap {
		for _, writer := range writers {
			writer.close()
		}
	}
}
