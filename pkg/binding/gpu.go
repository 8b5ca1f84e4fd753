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

package binding

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"k8s.io/klog/v2"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// ProbeGPUDomains refines the GPU domain type by querying NVML for the
// actual device count and per-device memory, adding nodes the static
// platform description doesn't know about. NVML absence (no driver, no
// devices, non-NVIDIA host) is never fatal: GPU binding domains are simply
// left at whatever the platform description already declared.
func ProbeGPUDomains(acc *resource.Accountant, root respath.Path) {
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		klog.V(4).Infof("binding: nvml unavailable (%v), skipping GPU domain probe", nvml.ErrorString(ret))
		return
	}
	defer func() { _ = nvml.Shutdown() }()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		klog.V(4).Infof("binding: nvml device count failed (%v)", nvml.ErrorString(ret))
		return
	}

	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			klog.V(4).Infof("binding: nvml device %d handle failed (%v)", i, nvml.ErrorString(ret))
			continue
		}
		mem, ret := dev.GetMemoryInfo()
		if ret != nvml.SUCCESS {
			klog.V(4).Infof("binding: nvml device %d memory query failed (%v)", i, nvml.ErrorString(ret))
			continue
		}
		id := fmt.Sprintf("%d", i)
		if _, err := acc.AddNode(root, respath.Segment{Type: respath.GPU, ID: id}, mem.Total); err != nil {
			klog.V(4).Infof("binding: nvml device %d already present in namespace: %v", i, err)
		}
	}
}
