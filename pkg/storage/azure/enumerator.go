package azure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/fgrzl/enumerators"
)

// NewAzureTableEnumerator walks every page of a list query and yields the
// decoded entities.
func NewAzureTableEnumerator(ctx context.Context, pager *runtime.Pager[aztables.ListEntitiesResponse]) enumerators.Enumerator[*entity] {
	return &tableEnumerator{ctx: ctx, pager: pager}
}

type tableEnumerator struct {
	ctx     context.Context
	pager   *runtime.Pager[aztables.ListEntitiesResponse]
	page    [][]byte
	current *entity
	err     error
	done    bool
}

func (e *tableEnumerator) MoveNext() bool {
	if e.done {
		return false
	}

	for len(e.page) == 0 {
		if !e.pager.More() {
			e.done = true
			return false
		}
		resp, err := e.pager.NextPage(e.ctx)
		if err != nil {
			return e.fail(err)
		}
		e.page = resp.Entities
	}

	raw := e.page[0]
	e.page = e.page[1:]

	current := &entity{}
	if err := json.Unmarshal(raw, current); err != nil {
		return e.fail(fmt.Errorf("%s: %w", ErrUnmarshalEntity, err))
	}
	e.current = current
	return true
}

func (e *tableEnumerator) fail(err error) bool {
	e.done = true
	e.err = err
	e.current = nil
	return true
}

func (e *tableEnumerator) Current() (*entity, error) {
	return e.current, e.err
}

func (e *tableEnumerator) Err() error {
	return e.err
}

func (e *tableEnumerator) Dispose() {
	e.done = true
	e.page = nil
}
