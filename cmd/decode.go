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
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/antaris-inc/go-xtce/ccsds"
	"github.com/antaris-inc/go-xtce/loader"
	"github.com/antaris-inc/go-xtce/xtce"
	"github.com/spf13/cobra"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode [packet files...]",
	Short: "Decode CCSDS packets against an XTCE container, printing one JSON object per packet",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return errors.New("requires at least one packet file")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		runDecode(args)
	},
}

var decodeSchemaPath string
var decodeContainer string
var decodeFrames bool

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVar(&decodeSchemaPath, "schema", "", "path to the XTCE document")
	decodeCmd.MarkFlagRequired("schema")
	decodeCmd.Flags().StringVar(&decodeContainer, "container", "", "qualified name of the container to decode against")
	decodeCmd.MarkFlagRequired("container")
	decodeCmd.Flags().BoolVar(&decodeFrames, "frames", false, "treat input files as VCDU transfer frames instead of raw packet files")
}

func runDecode(args []string) {
	ss, err := loader.LoadFile(decodeSchemaPath, nil)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)

	callback := func(p *ccsds.Packet) {
		vm, err := xtce.DecodePacket(ss, decodeContainer, []byte(*p))
		if err != nil {
			fmt.Fprintf(os.Stderr, "apid %d: %v\n", p.APID(), err)
			return
		}

		out := make(map[string]interface{}, len(vm.Names()))
		for _, name := range vm.Names() {
			v, _ := vm.Get(name)
			if v.Engineering != nil {
				out[name] = v.Engineering
			} else {
				out[name] = v.Raw
			}
		}
		enc.Encode(out)
	}

	if decodeFrames {
		FrameFileCallback(args, callback)
	} else {
		PacketFileCallback(args, callback)
	}
}
