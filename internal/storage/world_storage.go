package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// ErrNotReady хранилище закрыто или не открыто
var ErrNotReady = errors.New("хранилище не готово")

const metaKey = "meta:world"

// WorldMeta метаданные мира, сохраняемые отдельно от чанков
type WorldMeta struct {
	Seed     int64 `json:"seed"`
	GameTime int64 `json:"game_time"`
}

// WorldStorage хранилище чанков и их тиков в BadgerDB.
// Значения это JSON, сжатый zstd.
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	codec   *Codec
	logger  *logging.Logger
	mutex   sync.RWMutex
	isReady bool
}

var _ world.ChunkStore = (*WorldStorage)(nil)

// Options параметры открытия хранилища
type Options struct {
	// InMemory держит базу в памяти (для тестов), dataPath игнорируется
	InMemory bool
	// CompressionLevel уровень zstd: 1 быстрее, 4 лучше сжатие
	CompressionLevel int
}

// NewWorldStorage открывает хранилище мира в каталоге dataPath/world
func NewWorldStorage(dataPath string, opts Options) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	bopts := badger.DefaultOptions(dbPath)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
		dbPath = ""
	}
	bopts.Logger = nil // Отключаем логирование BadgerDB

	codec, err := NewCodec(opts.CompressionLevel)
	if err != nil {
		return nil, err
	}

	db, err := badger.Open(bopts)
	if err != nil {
		codec.Close()
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	logger := logging.GetStorageLogger()
	logger.Info("хранилище мира открыто: %s", dbPath)

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		codec:   codec,
		logger:  logger,
		isReady: true,
	}, nil
}

// Close закрывает хранилище
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	ws.codec.Close()
	return ws.db.Close()
}

// ChunkKey ключ чанка в базе
func ChunkKey(coords vec.Vec3) string {
	return fmt.Sprintf("chunk:%d:%d:%d", coords.X, coords.Y, coords.Z)
}

// SaveChunk сохраняет чанк вместе с тиками
func (ws *WorldStorage) SaveChunk(_ context.Context, data *world.ChunkData) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	blob, err := ws.codec.EncodeChunk(data)
	if err != nil {
		return err
	}

	err = ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(ChunkKey(data.Coords)), blob)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	ws.logger.Trace("чанк %v сохранён (%d байт)", data.Coords, len(blob))
	return nil
}

// LoadChunk загружает чанк; nil, nil если чанк не сохранялся
func (ws *WorldStorage) LoadChunk(_ context.Context, coords vec.Vec3) (*world.ChunkData, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	blob, err := ws.get(ChunkKey(coords))
	if err != nil || blob == nil {
		return nil, err
	}

	data, err := ws.codec.DecodeChunk(blob)
	if err != nil {
		return nil, fmt.Errorf("чанк %v: %w", coords, err)
	}
	return data, nil
}

// DeleteChunk удаляет сохранённый чанк
func (ws *WorldStorage) DeleteChunk(coords vec.Vec3) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	return ws.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(ChunkKey(coords)))
	})
}

// ChunkCoords возвращает координаты всех сохранённых чанков
func (ws *WorldStorage) ChunkCoords() ([]vec.Vec3, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	var out []vec.Vec3
	err := ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("chunk:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var c vec.Vec3
			key := string(it.Item().Key())
			if _, err := fmt.Sscanf(key, "chunk:%d:%d:%d", &c.X, &c.Y, &c.Z); err != nil {
				ws.logger.Warn("некорректный ключ чанка '%s': %v", key, err)
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// SaveMeta сохраняет метаданные мира
func (ws *WorldStorage) SaveMeta(meta WorldMeta) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	return ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaKey), data)
	})
}

// LoadMeta загружает метаданные мира; ok == false для новой базы
func (ws *WorldStorage) LoadMeta() (WorldMeta, bool, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	var meta WorldMeta
	if !ws.isReady {
		return meta, false, ErrNotReady
	}

	data, err := ws.get(metaKey)
	if err != nil || data == nil {
		return meta, false, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, false, fmt.Errorf("ошибка десериализации метаданных: %w", err)
	}
	return meta, true, nil
}

// get читает значение ключа; nil без ошибки, если ключа нет
func (ws *WorldStorage) get(key string) ([]byte, error) {
	var data []byte
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, nil
}
