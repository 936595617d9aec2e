package cart

// Peer is the ESP co-processor at the other end of the mailbox link. Push
// hands it one byte from the cartridge, Pull takes one byte of its pending
// outbound message and DataReady reports whether such a message exists.
type Peer interface {
	Push(b byte)
	Pull() byte
	DataReady() bool
}

const (
	mailboxBase     = 0x1800 // FPGA RAM offset of mailbox slot 0
	mailboxSlotSize = 0x100
)

func mailbox(slot uint8) int {
	return mailboxBase + int(slot&0x07)*mailboxSlotSize
}

// pollMessage copies one message from the peer into the inbound slot unless
// the previous one has not been acknowledged yet.
func (r *Rainbow) pollMessage() {
	if !r.esp.Enable || r.esp.HasReceivedMessage || r.peer == nil || !r.peer.DataReady() {
		return
	}

	base := mailbox(r.esp.RxAddress)
	n := r.peer.Pull()
	r.fpga[base] = n
	for i := 0; i < int(n); i++ {
		r.fpga[base+1+i] = r.peer.Pull()
	}
	r.esp.HasReceivedMessage = true
}

func (r *Rainbow) messageReceived() bool {
	r.pollMessage()
	return r.esp.HasReceivedMessage
}

func (r *Rainbow) clearMessageReceived() {
	r.esp.HasReceivedMessage = false
}

// transmit pushes the outbound slot, length byte first, to the peer.
func (r *Rainbow) transmit() {
	r.esp.MessageSent = false

	base := mailbox(r.esp.TxAddress)
	n := r.fpga[base]
	if r.peer != nil {
		r.peer.Push(n)
		for i := 0; i < int(n); i++ {
			r.peer.Push(r.fpga[base+1+i])
		}
	}

	r.esp.MessageSent = true
}
