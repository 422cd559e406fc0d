package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/panelbot/panelbot/internal/panel"
)

// Status renders the live system metrics.
func Status(s *panel.Status) string {
	var b strings.Builder
	b.WriteString("📊 系统状态/System status\n\n")

	fmt.Fprintf(&b, "🔲 CPU: %.2f%% (%d 核/cores)\n", s.CPUUsedPercent.Float(), s.CPUCores.Int())
	writeMemory(&b, "", s)
	load := s.Load1.Float()
	fmt.Fprintf(&b, "⚡ 负载/Load: %.2f (%s)\n", load, LoadLabel(load))
	writeDisks(&b, "", s.DiskData)

	b.WriteString("\n🌐 网络流量/Network:\n")
	writeNetwork(&b, s)
	return b.String()
}

// Info renders host information.
func Info(info *panel.BaseInfo) string {
	var b strings.Builder
	b.WriteString("📋 系统信息/System info\n\n")

	fmt.Fprintf(&b, "🏠 主机名称/Hostname: %s\n", orDefault(info.Hostname, unknown))
	fmt.Fprintf(&b, "🐧 发行版本/OS: %s\n", orDefault(strings.TrimSpace(info.Distro()), unknown))
	fmt.Fprintf(&b, "🔧 内核版本/Kernel: %s\n", orDefault(info.KernelVersion, unknown))
	fmt.Fprintf(&b, "🖥️ 系统类型/Arch: %s\n", orDefault(info.KernelArch, unknown))
	fmt.Fprintf(&b, "🌐 主机地址/Address: %s\n", orDefault(info.IPv4Addr, unknown))
	writeRuntime(&b, info)
	return b.String()
}

// Overview renders host information followed by system metrics. Either
// argument may be nil when its request failed.
func Overview(s *panel.Status, info *panel.BaseInfo) string {
	var b strings.Builder
	b.WriteString("🖥️ 1Panel 服务器概览/Server overview\n")
	b.WriteString(strings.Repeat("=", 20))
	b.WriteString("\n\n")

	if info != nil {
		fmt.Fprintf(&b, "🏠 主机名称/Hostname: %s\n", orDefault(info.Hostname, unknown))
		fmt.Fprintf(&b, "🐧 发行版本/OS: %s\n", orDefault(strings.TrimSpace(info.Distro()), unknown))
		if info.KernelVersion != "" {
			fmt.Fprintf(&b, "🔧 内核版本/Kernel: %s\n", info.KernelVersion)
		}
		if info.KernelArch != "" {
			fmt.Fprintf(&b, "🖥️ 系统类型/Arch: %s\n", info.KernelArch)
		}
		if info.IPv4Addr != "" {
			fmt.Fprintf(&b, "🌐 主机地址/Address: %s\n", info.IPv4Addr)
		}
		writeRuntime(&b, info)
		b.WriteString("\n")
	}

	if s != nil {
		cores := s.CPUCores.Int()
		if cores <= 0 && info != nil {
			cores = info.CPUCores.Int()
		}
		if cores <= 0 {
			cores = 1
		}
		load := s.Load1.Float()
		loadPercent := load / float64(cores) * 100

		b.WriteString("📊 状态/Status\n")
		fmt.Fprintf(&b, "  ⚡ 负载/Load: %.2f%% (%s)\n", loadPercent, LoadLabel(load))
		fmt.Fprintf(&b, "  🔲 CPU: %.2f%% (%d 核/cores)\n", s.CPUUsedPercent.Float(), cores)
		writeMemory(&b, "  ", s)
		writeDisks(&b, "  ", s.DiskData)

		b.WriteString("\n🌐 网络流量/Network\n")
		writeNetwork(&b, s)
	}
	return b.String()
}

func writeMemory(b *strings.Builder, indent string, s *panel.Status) {
	fmt.Fprintf(b, "%s💾 内存/Memory: %.2f%% (%s / %s)\n", indent,
		s.MemoryUsedPercent.Float(), FormatBytes(s.MemoryUsed.Float()), FormatBytes(s.MemoryTotal.Float()))
}

func writeDisks(b *strings.Builder, indent string, disks []panel.DiskUsage) {
	for _, disk := range disks {
		fmt.Fprintf(b, "%s💿 磁盘/Disk %s: %.2f%% (%s / %s)\n", indent, orDefault(disk.Path, "/"),
			disk.UsedPercent.Float(), FormatBytes(disk.Used.Float()), FormatBytes(disk.Total.Float()))
	}
}

func writeNetwork(b *strings.Builder, s *panel.Status) {
	sentSpeed, recvSpeed := "速率不可用/speed unavailable", "速率不可用/speed unavailable"
	if s.NetSpeedMeasured {
		sentSpeed = FormatBytes(s.NetSentSpeed) + "/s"
		recvSpeed = FormatBytes(s.NetRecvSpeed) + "/s"
	}
	fmt.Fprintf(b, "  ↑ 上行/Up: %s | 总发送/Sent: %s\n", sentSpeed, FormatBytes(s.NetBytesSent.Float()))
	fmt.Fprintf(b, "  ↓ 下行/Down: %s | 总接收/Received: %s\n", recvSpeed, FormatBytes(s.NetBytesRecv.Float()))
}

func writeRuntime(b *strings.Builder, info *panel.BaseInfo) {
	uptime, bootTime := info.Runtime()
	if bootTime > 0 {
		fmt.Fprintf(b, "📅 启动时间/Booted: %s\n", time.Unix(bootTime, 0).Format(bootTimeForm))
	}
	if uptime > 0 {
		fmt.Fprintf(b, "⏱️ 运行时间/Uptime: %s\n", FormatUptime(uptime))
	}
}
