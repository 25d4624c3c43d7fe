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

	"github.com/antaris-inc/go-xtce/loader"
	"github.com/antaris-inc/go-xtce/xtce"
	"github.com/spf13/cobra"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode [values.json]",
	Short: "Encode a command or telemetry container from a JSON map of parameter values",
	Long: `encode reads a JSON object mapping qualified parameter or argument
names to values, and writes the encoded binary to stdout. Use
--command for a MetaCommand container, or leave it unset to encode a
telemetry container with --container.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("requires exactly one values.json file")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		runEncode(args[0])
	},
}

var encodeSchemaPath string
var encodeContainer string
var encodeCommand string

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVar(&encodeSchemaPath, "schema", "", "path to the XTCE document")
	encodeCmd.MarkFlagRequired("schema")
	encodeCmd.Flags().StringVar(&encodeContainer, "container", "", "qualified name of the telemetry container to encode")
	encodeCmd.Flags().StringVar(&encodeCommand, "command", "", "qualified name of the MetaCommand to encode")
}

func runEncode(valuesPath string) {
	if encodeContainer == "" && encodeCommand == "" {
		fmt.Println("one of --container or --command is required")
		os.Exit(1)
	}

	ss, err := loader.LoadFile(encodeSchemaPath, nil)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	data, err := os.ReadFile(valuesPath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var out []byte
	if encodeCommand != "" {
		out, err = xtce.EncodeCommand(ss, encodeCommand, values)
	} else {
		out, err = xtce.EncodePacket(ss, encodeContainer, values)
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	os.Stdout.Write(out)
}
