/*
Copyright 2022 The Koordinator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package aggregator

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/contrib"
)

func TestScoreWeightedSum(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	value := NewMockContribution(ctrl)
	value.EXPECT().Name().Return("value").AnyTimes()
	value.EXPECT().Compute(gomock.Any()).Return(float32(0.8), nil)

	congestion := NewMockContribution(ctrl)
	congestion.EXPECT().Name().Return("congestion").AnyTimes()
	congestion.EXPECT().Compute(gomock.Any()).Return(float32(0.4), nil)

	agg, err := New([]Weighted{
		{Contribution: value, Weight: 0.5},
		{Contribution: congestion, Weight: 0.5},
	}, false)
	require.NoError(t, err)

	score, ok, err := agg.Score(contrib.Input{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.6, score, 1e-6)
}

func TestScoreGateExcludesZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	c := NewMockContribution(ctrl)
	c.EXPECT().Name().Return("congestion").AnyTimes()
	c.EXPECT().Compute(gomock.Any()).Return(float32(0), nil)

	agg, err := New([]Weighted{{Contribution: c, Weight: 1}}, true)
	require.NoError(t, err)

	_, ok, err := agg.Score(contrib.Input{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInitLevelAggregatesErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a := NewMockContribution(ctrl)
	a.EXPECT().Name().Return("a").AnyTimes()
	a.EXPECT().Init(uint16(0)).Return(errors.New("boom a"))

	b := NewMockContribution(ctrl)
	b.EXPECT().Name().Return("b").AnyTimes()
	b.EXPECT().Init(uint16(0)).Return(errors.New("boom b"))

	agg, err := New([]Weighted{
		{Contribution: a, Weight: 1},
		{Contribution: b, Weight: 1},
	}, false)
	require.NoError(t, err)

	err = agg.InitLevel(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom a")
	assert.Contains(t, err.Error(), "boom b")
}

func TestNewRejectsNonPositiveWeightSum(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := NewMockContribution(ctrl)

	_, err := New([]Weighted{{Contribution: c, Weight: 0}}, false)
	assert.Error(t, err)
}
