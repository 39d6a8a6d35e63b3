package uldevice

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
	"github.com/jetperch/joulescope-driver-sub001/internal/pubsub"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

func newTestULDevice(t *testing.T) (*ULDevice, *[][]byte) {
	t.Helper()
	broker := pubsub.NewBroker()
	inbox, err := queue.NewMessageQueue()
	require.NoError(t, err)
	returnQ, err := queue.NewMessageQueue()
	require.NoError(t, err)
	t.Cleanup(func() { inbox.Close(); returnQ.Close() })

	var sent [][]byte
	writeOut := func(b []byte) error {
		sent = append(sent, append([]byte(nil), b...))
		return nil
	}
	devicePrefix := queue.MustParseTopic("u/m001/s0001")
	submit := func(msg *queue.Message) bool {
		broker.Publish(msg)
		return true
	}
	d := New(devicePrefix, broker, submit, inbox, returnQ, writeOut, 1024, nil)
	return d, &sent
}

func buildStreamFrame(portID uint8, wireCounter, elementCount uint32, samples []byte) []byte {
	payload := make([]byte, 8+len(samples))
	binary.LittleEndian.PutUint32(payload[0:4], wireCounter)
	binary.LittleEndian.PutUint32(payload[4:8], elementCount)
	copy(payload[8:], samples)
	h := wire.FrameHeader{PortID: portID, Length: uint16(len(payload))}
	frame := wire.NewFrame(h)
	copy(wire.Payload(frame, h), payload)
	return frame
}

func TestHandleFrameConnectAcceptsMatchingProtocol(t *testing.T) {
	d, _ := newTestULDevice(t)
	req := wire.ConnectRequest{ProtocolMajor: ProtocolMajor, HardwareVer: 1, FirmwareVer: 2, FpgaVer: 3}
	reqBytes := req.Encode()
	payload := append([]byte{byte(linkControlConnect)}, reqBytes[:]...)
	h := wire.FrameHeader{PortID: constants.PortLinkControl, Length: uint16(len(payload))}
	frame := wire.NewFrame(h)
	copy(wire.Payload(frame, h), payload)

	require.NoError(t, d.HandleFrame(frame))
	require.Equal(t, uint32(1), d.connect.Hardware)
}

func TestHandleFrameEchoRespondsWithSamePayload(t *testing.T) {
	d, sent := newTestULDevice(t)
	payload := append([]byte{byte(linkControlEcho)}, []byte("ping")...)
	h := wire.FrameHeader{PortID: constants.PortLinkControl, Length: uint16(len(payload))}
	frame := wire.NewFrame(h)
	copy(wire.Payload(frame, h), payload)

	require.NoError(t, d.HandleFrame(frame))
	require.Len(t, *sent, 1)
	rsp := wire.DecodeFrameHeader((*sent)[0])
	require.Equal(t, uint8(constants.PortLinkControl), rsp.PortID)
	body := wire.Payload((*sent)[0], rsp)
	require.Equal(t, "ping", string(body[1:]))
}

func TestHandleFramePubSubInboundRepublishesToBroker(t *testing.T) {
	d, _ := newTestULDevice(t)
	topic := queue.MustParseTopic("u/m001/s0001/h/fs")
	v := queue.U32Value(2000000).WithFlags(queue.FlagRetain)
	payload := wire.EncodePubSubMessage(topic, v)
	h := wire.FrameHeader{PortID: constants.PortPubSub, Length: uint16(len(payload))}
	frame := wire.NewFrame(h)
	copy(wire.Payload(frame, h), payload)

	require.NoError(t, d.HandleFrame(frame))
	got, code := d.broker.Query(topic)
	require.Equal(t, queue.CodeSuccess, code)
	require.Equal(t, v, got)
}

func TestHandleFrameStreamComputesPowerFromCurrentAndVoltage(t *testing.T) {
	d, _ := newTestULDevice(t)

	currentPort := uint8(constants.PortStreamBase + constants.FieldCurrent)
	voltagePort := uint8(constants.PortStreamBase + constants.FieldVoltage)
	powerPort := uint8(constants.PortStreamBase + constants.FieldPower)

	d.AddSignal(signalSpec{Port: currentPort, FieldID: constants.FieldCurrent, ElementType: wire.ElementFloat, ElementSizeBits: 32}, 20, 1)
	d.AddSignal(signalSpec{Port: voltagePort, FieldID: constants.FieldVoltage, ElementType: wire.ElementFloat, ElementSizeBits: 32}, 20, 1)
	d.AddSignal(signalSpec{Port: powerPort, FieldID: constants.FieldPower, ElementType: wire.ElementFloat, ElementSizeBits: 32}, 20, 1)

	var subscribed *queue.Message
	broker := d.broker
	powerTopic := queue.MustParseTopic("u/m001/s0001/s/f7/!data")
	broker.Subscribe(powerTopic, &pubsub.Subscriber{
		Identity: 0xdead,
		Flags:    pubsub.FlagPub,
		Callback: func(msg *queue.Message) { subscribed = msg },
	})

	currentBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(currentBytes, math.Float32bits(2.0))
	voltageBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(voltageBytes, math.Float32bits(3.0))

	require.NoError(t, d.HandleFrame(buildStreamFrame(currentPort, 0, 1, currentBytes)))
	require.NoError(t, d.HandleFrame(buildStreamFrame(voltagePort, 0, 1, voltageBytes)))

	require.NotNil(t, subscribed)
	data, ok := subscribed.Value.Bin()
	require.True(t, ok)
	hdr := wire.DecodeStreamSignalHeader(data)
	require.Equal(t, uint32(1), hdr.ElementCount)
	power := math.Float32frombits(binary.LittleEndian.Uint32(data[48:52]))
	require.Equal(t, float32(6.0), power)
}
