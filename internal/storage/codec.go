package storage

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/blockworld/internal/world"
)

// Codec сериализует чанки: JSON, сжатый zstd.
// Кодировщик и декодировщик переиспользуются и безопасны для
// конкурентного вызова EncodeAll/DecodeAll.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec создаёт кодек с уровнем сжатия level (0 по умолчанию)
func NewCodec(level int) (*Codec, error) {
	encLevel := zstd.SpeedDefault
	if level > 0 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания zstd кодировщика: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("ошибка создания zstd декодировщика: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// EncodeChunk сериализует и сжимает чанк
func (c *Codec) EncodeChunk(data *world.ChunkData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации чанка %v: %w", data.Coords, err)
	}
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// DecodeChunk распаковывает и разбирает чанк
func (c *Codec) DecodeChunk(blob []byte) (*world.ChunkData, error) {
	raw, err := c.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки zstd: %w", err)
	}
	var data world.ChunkData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("ошибка десериализации чанка: %w", err)
	}
	return &data, nil
}

// Close освобождает ресурсы кодека
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}
