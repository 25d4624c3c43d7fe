package loader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antaris-inc/go-xtce/xtce"
)

const dispatchDoc = `<?xml version="1.0"?>
<SpaceSystem name="Root">
  <TelemetryMetaData>
    <ParameterTypeSet>
      <EnumeratedParameterType name="ModeEnum">
        <IntegerDataEncoding sizeInBits="8" encoding="unsigned"/>
        <EnumerationList>
          <Enumeration value="0" label="A"/>
          <Enumeration value="1" label="B"/>
        </EnumerationList>
      </EnumeratedParameterType>
      <IntegerParameterType name="Uint8">
        <IntegerDataEncoding sizeInBits="8" encoding="unsigned"/>
      </IntegerParameterType>
    </ParameterTypeSet>
    <ParameterSet>
      <Parameter name="Mode" parameterTypeRef="ModeEnum"/>
      <Parameter name="Val" parameterTypeRef="Uint8"/>
    </ParameterSet>
    <ContainerSet>
      <SequenceContainer name="Base">
        <EntryList>
          <ParameterRefEntry parameterRef="Mode"/>
        </EntryList>
      </SequenceContainer>
      <SequenceContainer name="ChildA">
        <EntryList>
          <ParameterRefEntry parameterRef="Val"/>
        </EntryList>
        <BaseContainer containerRef="Base">
          <RestrictionCriteria>
            <Comparison parameterRef="Mode" value="A" comparisonOperator="=="/>
          </RestrictionCriteria>
        </BaseContainer>
      </SequenceContainer>
    </ContainerSet>
  </TelemetryMetaData>
</SpaceSystem>
`

func TestLoadBuildsDispatchingContainers(t *testing.T) {
	ss, err := Load(strings.NewReader(dispatchDoc), nil)
	require.NoError(t, err)

	s := xtce.NewBitStreamWriter()
	require.NoError(t, s.WriteUnsigned(0, 8)) // Mode = A
	require.NoError(t, s.WriteUnsigned(9, 8)) // Val = 9

	vm, err := xtce.DecodePacket(ss, "/Root/Base", s.Bytes())
	require.NoError(t, err)

	mode, ok := vm.Get("/Root/Mode")
	require.True(t, ok)
	require.Equal(t, "A", mode.Engineering)

	val, ok := vm.Get("/Root/Val")
	require.True(t, ok)
	require.Equal(t, uint64(9), val.Engineering)
}

const commandDoc = `<?xml version="1.0"?>
<SpaceSystem name="Root">
  <CommandMetaData>
    <ArgumentTypeSet>
      <IntegerArgumentType name="Opcode">
        <IntegerDataEncoding sizeInBits="8" encoding="unsigned"/>
      </IntegerArgumentType>
    </ArgumentTypeSet>
    <MetaCommandSet>
      <MetaCommand name="Ping">
        <ArgumentList>
          <Argument name="Code" argumentTypeRef="Opcode"/>
        </ArgumentList>
        <CommandContainer name="PingContainer">
          <EntryList>
            <ArgumentRefEntry argumentRef="Code"/>
          </EntryList>
        </CommandContainer>
      </MetaCommand>
    </MetaCommandSet>
  </CommandMetaData>
</SpaceSystem>
`

func TestLoadBuildsMetaCommand(t *testing.T) {
	ss, err := Load(strings.NewReader(commandDoc), nil)
	require.NoError(t, err)

	data, err := xtce.EncodeCommand(ss, "/Root/Ping", map[string]interface{}{
		"/Root/Ping/Code": uint64(7),
	})
	require.NoError(t, err)
	require.Equal(t, []byte{7}, data)
}
