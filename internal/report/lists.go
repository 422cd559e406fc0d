package report

import (
	"fmt"
	"strings"

	"github.com/panelbot/panelbot/internal/panel"
)

// Empty-state messages. An empty list is informational, not a failure.
const (
	NoContainers    = "📦 暂无容器/No containers"
	NoApps          = "📦 暂无已安装应用/No installed apps"
	NoSSHLogs       = "📋 暂无 SSH 登录记录/No SSH login records"
	NoFirewallRules = "🔥 暂无防火墙规则/No firewall rules"
	NoCronJobs      = "⏰ 暂无定时任务/No scheduled tasks"
)

var containerStateIcons = map[string]string{
	"running": "🟢",
	"exited":  "🔴",
	"paused":  "🟡",
	"created": "⚪",
}

var appStatusIcons = map[string]string{
	"Running":    "🟢",
	"Stopped":    "🔴",
	"Installing": "🔄",
	"Error":      "❌",
}

func iconFor(icons map[string]string, key string) string {
	if icon, ok := icons[key]; ok {
		return icon
	}
	return "⚫"
}

// Containers renders a container page, showing at most MaxContainers entries.
func Containers(page *panel.Page[panel.Container]) string {
	if page == nil || len(page.Items) == 0 {
		return NoContainers
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🐳 容器列表/Containers (共/total %d)\n\n", max(int(page.Total.Int()), len(page.Items)))

	shown := page.Items[:min(len(page.Items), MaxContainers)]
	for _, c := range shown {
		fmt.Fprintf(&b, "%s %s\n", iconFor(containerStateIcons, c.State), orDefault(c.Name, unknown))
		fmt.Fprintf(&b, "   镜像/Image: %s\n", shortImage(c.ImageName))
	}
	if hidden := hiddenCount(int(page.Total.Int()), len(page.Items), len(shown)); hidden > 0 {
		fmt.Fprintf(&b, "\n... 还有 %d 个容器/%d more", hidden, hidden)
	}
	b.WriteString("\n\n💡 操作/Manage: /panel docker start|stop|restart|pause|unpause <名称/name>")
	return b.String()
}

// shortImage drops the registry and namespace of an image reference.
func shortImage(image string) string {
	if i := strings.LastIndexByte(image, '/'); i >= 0 {
		image = image[i+1:]
	}
	return truncate(image, maxImageLength)
}

// Apps renders installed apps with their catalog name and version.
func Apps(page *panel.Page[panel.App]) string {
	if page == nil || len(page.Items) == 0 {
		return NoApps
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📦 已安装应用/Installed apps (共/total %d)\n\n", max(int(page.Total.Int()), len(page.Items)))

	for _, app := range page.Items {
		name := orDefault(app.Name, unknown)
		fmt.Fprintf(&b, "%s %s", iconFor(appStatusIcons, app.Status), name)
		if product := app.Product(); product != "" && product != app.Name {
			fmt.Fprintf(&b, " (%s)", product)
		}
		if app.Version != "" {
			fmt.Fprintf(&b, " v%s", app.Version)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SSHLogs renders one page of login attempts. pageNum is echoed in the header.
func SSHLogs(page *panel.SSHLogPage, pageNum int) string {
	if page == nil {
		return NoSSHLogs
	}
	entries := page.Entries()
	if len(entries) == 0 {
		return NoSSHLogs
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔐 SSH 登录日志/SSH logins (第 %d 页/page %d, 共/total %d)\n\n", pageNum, pageNum, int(page.Total.Int()))

	for _, entry := range entries {
		icon := "❌"
		if entry.Status == "Success" {
			icon = "✅"
		}
		fmt.Fprintf(&b, "%s %s\n", icon, entry.Date)
		fmt.Fprintf(&b, "   %s@%s\n", orDefault(entry.User, "root"), orDefault(entry.Address, unknown))
	}
	b.WriteString("\n💡 翻页/Next page: /panel ssh <页码/page> [All|Success|Failed]")
	return b.String()
}

// Firewall renders port or address rules, showing at most MaxFirewallRules.
func Firewall(page *panel.Page[panel.FirewallRule], ruleType string) string {
	if page == nil || len(page.Items) == 0 {
		return NoFirewallRules
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔥 防火墙规则/Firewall rules (共/total %d)\n\n", max(int(page.Total.Int()), len(page.Items)))

	shown := page.Items[:min(len(page.Items), MaxFirewallRules)]
	for _, rule := range shown {
		icon := "🚫"
		if rule.Strategy == "accept" {
			icon = "✅"
		}
		if ruleType == "address" {
			fmt.Fprintf(&b, "%s %s\n", icon, rule.Address)
			continue
		}
		fmt.Fprintf(&b, "%s %s/%s", icon, rule.Port, orDefault(rule.Protocol, "tcp"))
		if rule.Description != "" {
			fmt.Fprintf(&b, " - %s", rule.Description)
		}
		b.WriteString("\n")
	}
	if hidden := hiddenCount(int(page.Total.Int()), len(page.Items), len(shown)); hidden > 0 {
		fmt.Fprintf(&b, "\n... 还有 %d 条规则/%d more", hidden, hidden)
	}
	return b.String()
}

// CronJobs renders scheduled tasks.
func CronJobs(page *panel.Page[panel.CronJob]) string {
	if page == nil || len(page.Items) == 0 {
		return NoCronJobs
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ 定时任务/Scheduled tasks (共/total %d)\n\n", max(int(page.Total.Int()), len(page.Items)))

	for _, job := range page.Items {
		icon := "🔴"
		if job.Status == "Enable" {
			icon = "🟢"
		}
		fmt.Fprintf(&b, "%s %s\n", icon, orDefault(job.Name, unknown))
		fmt.Fprintf(&b, "   类型/Type: %s | %s\n", job.Type, job.Spec)
	}
	return b.String()
}
