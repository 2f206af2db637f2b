package gpu

type CommandKind int

const (
	CmdSetVertexBuffer CommandKind = iota + 1
	CmdSetIndexBuffer
	CmdDrawIndexed
)

type Command struct {
	Kind      CommandKind
	Slot      uint32
	Buffer    Buffer
	Format    IndexFormat
	Indices   uint32
	Instances uint32
}

// Recorder is a RenderPass that keeps every command it receives.
type Recorder struct {
	Commands []Command
}

func (r *Recorder) SetVertexBuffer(slot uint32, buf Buffer) {
	r.Commands = append(r.Commands, Command{Kind: CmdSetVertexBuffer, Slot: slot, Buffer: buf})
}

func (r *Recorder) SetIndexBuffer(buf Buffer, format IndexFormat) {
	r.Commands = append(r.Commands, Command{Kind: CmdSetIndexBuffer, Buffer: buf, Format: format})
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount uint32) {
	r.Commands = append(r.Commands, Command{Kind: CmdDrawIndexed, Indices: indexCount, Instances: instanceCount})
}

// Draws returns the number of draw calls and the total indices they cover.
func (r *Recorder) Draws() (calls int, indices uint64) {
	for _, c := range r.Commands {
		if c.Kind == CmdDrawIndexed {
			calls++
			indices += uint64(c.Indices) * uint64(c.Instances)
		}
	}
	return calls, indices
}

func (r *Recorder) Reset() { r.Commands = r.Commands[:0] }
