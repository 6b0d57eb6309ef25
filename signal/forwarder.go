package signal

import "github.com/xrpa-io/xrpa-go/xrpamem"

// Forwarder republishes every inbound signal packet it receives to a set of
// outbound recipients, without needing to know the packet's sample type at
// compile time — it operates purely on the wire header and raw channel
// bytes via SignalPacket.CopyChannelDataFrom.
type Forwarder struct {
	recipients []*OutboundSignalData
}

// AddRecipient registers an outbound signal to receive a copy of every
// packet this forwarder sees.
func (f *Forwarder) AddRecipient(recipient *OutboundSignalData) {
	f.recipients = append(f.recipients, recipient)
}

// OnSignalData implements DataSink.
func (f *Forwarder) OnSignalData(_ uint64, data xrpamem.Accessor) {
	inbound := NewSignalPacket(data)
	frameCount := inbound.FrameCount()
	sampleType := inbound.SampleType()
	numChannels := inbound.NumChannels()
	frameRate := inbound.FrameRate()
	sampleSize := SampleSize(sampleType)

	for _, recipient := range f.recipients {
		outbound := recipient.sendSignalPacket(sampleSize, frameCount, sampleType, numChannels, frameRate)
		outbound.CopyChannelDataFrom(inbound)
	}
}

var _ DataSink = (*Forwarder)(nil)
