package assistant

import (
	"fmt"
	"strings"
)

// ValidProviders are the cloud providers the design prompt knows.
var ValidProviders = []string{"aws", "gcp", "azure", "digitalocean", "kubernetes"}

const maxItemsPerType = 5

var providerResources = map[string]string{
	"aws": `
- Compute: aws_instance (EC2), aws_autoscaling_group, aws_lambda_function
- Networking: aws_vpc, aws_subnet, aws_security_group, aws_lb (Load Balancer), aws_nat_gateway
- Storage: aws_s3_bucket, aws_ebs_volume, aws_efs_file_system
- Database: aws_rds_instance, aws_dynamodb_table, aws_elasticache_cluster
- Container: aws_ecs_cluster, aws_ecs_service, aws_eks_cluster
`,
	"gcp": `
- Compute: google_compute_instance, google_compute_instance_group, google_cloud_function
- Networking: google_compute_network, google_compute_subnetwork, google_compute_firewall, google_compute_forwarding_rule
- Storage: google_storage_bucket, google_compute_disk
- Database: google_sql_database_instance, google_bigtable_instance
- Container: google_container_cluster (GKE), google_container_node_pool
`,
	"azure": `
- Compute: azurerm_virtual_machine, azurerm_linux_virtual_machine, azurerm_function_app
- Networking: azurerm_virtual_network, azurerm_subnet, azurerm_network_security_group, azurerm_lb
- Storage: azurerm_storage_account, azurerm_managed_disk
- Database: azurerm_postgresql_server, azurerm_cosmosdb_account, azurerm_sql_database
- Container: azurerm_kubernetes_cluster (AKS), azurerm_container_group
`,
	"digitalocean": `
- Compute: digitalocean_droplet, digitalocean_kubernetes_cluster
- Networking: digitalocean_vpc, digitalocean_firewall, digitalocean_loadbalancer
- Storage: digitalocean_volume, digitalocean_spaces_bucket
- Database: digitalocean_database_cluster
- Other: digitalocean_cdn, digitalocean_domain
`,
	"kubernetes": `
- Workloads: kubernetes_deployment, kubernetes_stateful_set, kubernetes_daemon_set, kubernetes_job
- Networking: kubernetes_service, kubernetes_ingress, kubernetes_network_policy
- Storage: kubernetes_persistent_volume, kubernetes_persistent_volume_claim, kubernetes_storage_class
- Config: kubernetes_config_map, kubernetes_secret, kubernetes_service_account
- Scaling: kubernetes_horizontal_pod_autoscaler
`,
}

// IsValidProvider reports whether p is one of ValidProviders.
func IsValidProvider(p string) bool {
	_, ok := providerResources[p]
	return ok
}

// Resource is one diagram node as sent by the editor.
type Resource map[string]interface{}

func (r Resource) str(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return fmt.Sprintf("%g", t), true
	default:
		return fmt.Sprint(t), true
	}
}

// ResourceSummary groups resources by type in first-seen order, listing at
// most five entries per type.
func ResourceSummary(resources []Resource) string {
	var order []string
	byType := map[string][]Resource{}
	for _, r := range resources {
		rtype, ok := r.str("type")
		if !ok || rtype == "" {
			rtype = "unknown"
		}
		if _, seen := byType[rtype]; !seen {
			order = append(order, rtype)
		}
		byType[rtype] = append(byType[rtype], r)
	}

	var lines []string
	for _, rtype := range order {
		items := byType[rtype]
		lines = append(lines, fmt.Sprintf("- %s (%dx):", rtype, len(items)))
		for i, item := range items {
			if i == maxItemsPerType {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(items)-maxItemsPerType))
				break
			}
			lines = append(lines, describe(item))
		}
	}
	return strings.Join(lines, "\n")
}

func describe(item Resource) string {
	name, ok := item.str("name")
	if !ok || name == "" {
		name = "unnamed"
	}
	var details []string
	if v, ok := item.str("instanceType"); ok {
		details = append(details, "Type: "+v)
	}
	if v, ok := item.str("size"); ok {
		details = append(details, "Size: "+v)
	}
	if v, ok := item.str("volumeSize"); ok {
		details = append(details, "Volume: "+v+"GB")
	}
	if len(details) == 0 {
		return "  - " + name
	}
	return fmt.Sprintf("  - %s: %s", name, strings.Join(details, ", "))
}

func costOptimizationPrompt(resources []Resource, currentCost float64) string {
	return fmt.Sprintf(`You are an expert cloud infrastructure cost optimization consultant. Analyze this Terraform infrastructure design and provide specific cost optimization recommendations.

Current Infrastructure:
%s

Current Estimated Monthly Cost: $%g

Please provide:
1. **Cost Optimization Opportunities** - List specific resources that could be optimized and how
2. **Estimated Savings** - Approximate monthly savings for each recommendation
3. **Implementation Difficulty** - Rate each suggestion as Easy/Medium/Hard
4. **Risk Assessment** - Note any performance or availability trade-offs

Format your response as JSON with this structure:
{
  "summary": "Brief overview of optimization potential",
  "total_potential_savings": "Estimated total monthly savings",
  "recommendations": [
    {
      "resource": "Resource name/type",
      "current": "Current configuration",
      "optimized": "Recommended configuration",
      "monthly_savings": "Estimated savings",
      "difficulty": "Easy/Medium/Hard",
      "impact": "Description of changes needed",
      "risks": "Any performance/availability concerns"
    }
  ],
  "quick_wins": ["List of easiest optimizations to implement first"]
}

Provide practical, actionable recommendations.`, ResourceSummary(resources), currentCost)
}

func designPrompt(userPrompt, provider string) string {
	catalogue, ok := providerResources[provider]
	if !ok {
		catalogue = "Standard Terraform resources"
	}
	return fmt.Sprintf(`You are an expert cloud infrastructure architect. Generate a Terraform infrastructure design based on the user's requirements.

User Request: %s

Target Cloud Provider: %s

Available Resource Types:
%s

Generate a complete infrastructure design and provide:

1. **Architecture Overview** - High-level description of the design
2. **Resource List** - Specific resources to create with configuration details
3. **Rationale** - Why you chose this architecture
4. **Estimated Monthly Cost** - Rough cost estimate
5. **Best Practices** - Security, scalability, and reliability considerations

Format your response as JSON with this structure:
{
  "overview": "Architecture description",
  "estimated_cost": "Monthly cost estimate",
  "resources": [
    {
      "type": "Resource type (e.g., aws_instance, aws_vpc)",
      "name": "Descriptive name",
      "configuration": {
        "property1": "value1",
        "property2": "value2"
      },
      "rationale": "Why this resource is needed"
    }
  ],
  "connections": [
    {
      "from": "resource1_name",
      "to": "resource2_name",
      "description": "Why they're connected"
    }
  ],
  "best_practices": ["List of important considerations"],
  "next_steps": ["Recommended follow-up actions"]
}

Provide a production-ready, well-architected design.`, userPrompt, provider, catalogue)
}
