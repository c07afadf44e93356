package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/pdown/internal/snapshot"
)

// SnapshotStore is the read side of the failure screenshot store.
type SnapshotStore interface {
	List(shareID string) ([]snapshot.Meta, error)
	Get(id string) (snapshot.Meta, error)
	ReadImage(id string) ([]byte, string, error)
}

// SnapshotView is snapshot metadata with the URL of its image.
type SnapshotView struct {
	snapshot.Meta
	URL string `json:"url"`
}

func snapshotView(meta snapshot.Meta) SnapshotView {
	return SnapshotView{Meta: meta, URL: "/api/v1/snapshots/" + meta.ID + "/image"}
}

func registerSnapshotHandlers(api huma.API, store SnapshotStore) {
	type listSnapshotsOutput struct {
		Body struct {
			Snapshots []SnapshotView `json:"snapshots"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List failure screenshots", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct {
			ShareID string `query:"share" doc:"Only snapshots of this share ID"`
		}) (*listSnapshotsOutput, error) {
			metas, err := store.List(input.ShareID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSnapshotsOutput{}
			out.Body.Snapshots = make([]SnapshotView, 0, len(metas))
			for _, m := range metas {
				out.Body.Snapshots = append(out.Body.Snapshots, snapshotView(m))
			}
			return out, nil
		})

	type snapshotIDInput struct {
		SnapshotID string `path:"snapshot_id"`
	}
	type getSnapshotOutput struct {
		Body SnapshotView
	}
	huma.Register(api, huma.Operation{OperationID: "get-snapshot-metadata", Method: http.MethodGet, Path: "/api/v1/snapshots/{snapshot_id}/metadata", Summary: "Get snapshot metadata", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*getSnapshotOutput, error) {
			meta, err := store.Get(input.SnapshotID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getSnapshotOutput{Body: snapshotView(meta)}, nil
		})

	type snapshotImageOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-snapshot-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots/{snapshot_id}/image",
		Summary:     "Get snapshot image",
		Tags:        []string{"Snapshots"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Snapshot image",
				Content: map[string]*huma.MediaType{
					"image/png": {
						Schema: &huma.Schema{Type: "string", Format: "binary"},
					},
				},
			},
		},
	}, func(ctx context.Context, input *snapshotIDInput) (*snapshotImageOutput, error) {
		data, format, err := store.ReadImage(input.SnapshotID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &snapshotImageOutput{ContentType: "image/" + format, Body: data}, nil
	})
}
