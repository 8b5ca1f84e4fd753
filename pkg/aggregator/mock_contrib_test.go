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
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/contrib"
)

// MockContribution is a hand-written gomock double for contrib.Contribution,
// in the shape mockgen would generate from the interface.
type MockContribution struct {
	ctrl     *gomock.Controller
	recorder *MockContributionMockRecorder
}

type MockContributionMockRecorder struct {
	mock *MockContribution
}

func NewMockContribution(ctrl *gomock.Controller) *MockContribution {
	m := &MockContribution{ctrl: ctrl}
	m.recorder = &MockContributionMockRecorder{m}
	return m
}

func (m *MockContribution) EXPECT() *MockContributionMockRecorder { return m.recorder }

func (m *MockContribution) Name() string {
	ret := m.ctrl.Call(m, "Name")
	return ret[0].(string)
}

func (mr *MockContributionMockRecorder) Name() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Name", reflect.TypeOf((*MockContribution)(nil).Name))
}

func (m *MockContribution) Init(priority uint16) error {
	ret := m.ctrl.Call(m, "Init", priority)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockContributionMockRecorder) Init(priority interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Init", reflect.TypeOf((*MockContribution)(nil).Init), priority)
}

func (m *MockContribution) Compute(in contrib.Input) (float32, error) {
	ret := m.ctrl.Call(m, "Compute", in)
	err, _ := ret[1].(error)
	return ret[0].(float32), err
}

func (mr *MockContributionMockRecorder) Compute(in interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Compute", reflect.TypeOf((*MockContribution)(nil).Compute), in)
}
