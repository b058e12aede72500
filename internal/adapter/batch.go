package adapter

import (
	"context"
	"fmt"
	"io"

	"GameSync/internal/model"

	"github.com/goccy/go-json"
)

// BatchCollector 把预先导出的记录当作一次采集结果（命令行 sync --input 使用）
type BatchCollector struct {
	platform model.PlatformType
	records  []*model.RawPlatformRecord
}

// NewBatchCollector 只保留属于该平台的记录
func NewBatchCollector(platform model.PlatformType, records []*model.RawPlatformRecord) *BatchCollector {
	kept := make([]*model.RawPlatformRecord, 0, len(records))
	for _, r := range records {
		if r != nil && r.Platform == platform {
			kept = append(kept, r)
		}
	}
	return &BatchCollector{platform: platform, records: kept}
}

func (b *BatchCollector) GetType() model.PlatformType {
	return b.platform
}

func (b *BatchCollector) FetchRecords(ctx context.Context, _ *model.PlatformLink) ([]*model.RawPlatformRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*model.RawPlatformRecord, len(b.records))
	copy(out, b.records)
	return out, nil
}

// DecodeRecords 解析记录数组；未知字段直接报错
func DecodeRecords(r io.Reader) ([]*model.RawPlatformRecord, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var records []*model.RawPlatformRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("解析记录文件失败: %w", err)
	}
	return records, nil
}
